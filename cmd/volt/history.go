package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/volt-test/volt/internal/store"
)

var flagLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "history lists recent runs recorded in service.history",
	Args:  cobra.NoArgs,
	RunE:  doHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show RUN",
	Short: "show prints a single run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory(cmd.Context())
		if err != nil || db == nil {
			return historyErr(err)
		}
		defer func() {
			_ = db.Close()
		}()
		row, err := store.Get(cmd.Context(), db, args[0])
		if err != nil {
			return fmt.Errorf("run %s: %w", args[0], err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), row.String())
		return nil
	},
}

var historyRmCmd = &cobra.Command{
	Use:   "rm RUN...",
	Short: "rm deletes runs from the history",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory(cmd.Context())
		if err != nil || db == nil {
			return historyErr(err)
		}
		defer func() {
			_ = db.Close()
		}()
		var errs []error
		for _, id := range args {
			if err := store.Delete(cmd.Context(), db, id); err != nil {
				errs = append(errs, fmt.Errorf("run %s: %w", id, err))
			}
		}
		return errors.Join(errs...)
	},
}

func historyErr(err error) error {
	if err != nil {
		return err
	}
	return errors.New("service.history is not configured")
}

func doHistory(cmd *cobra.Command, _ []string) error {
	db, err := openHistory(cmd.Context())
	if err != nil || db == nil {
		return historyErr(err)
	}
	defer func() {
		_ = db.Close()
	}()

	rows, err := store.List(cmd.Context(), db, flagLimit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tJOB\tSTATUS\tEXIT\tSTARTED\tDURATION")
	for _, r := range rows {
		status := "running"
		if r.Classification != nil {
			status = *r.Classification
		}
		exit := "-"
		if r.ExitCode != nil {
			exit = fmt.Sprint(*r.ExitCode)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.UUID, r.Job, status, exit,
			r.Started.Local().Format(time.DateTime),
			r.Duration().Round(time.Millisecond),
		)
	}
	return tw.Flush()
}
