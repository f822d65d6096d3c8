package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/volt-test/volt/internal/jobspec"
	"github.com/volt-test/volt/internal/service"
)

var validateCmd = &cobra.Command{
	Use:   "validate SPEC|DIR...",
	Short: "validate checks job specifications against the engine schema",
	Args:  cobra.MinimumNArgs(1),
	RunE:  doValidate,
}

func doValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	validator, err := jobspec.NewValidator()
	if err != nil {
		return err
	}

	paths, err := service.ExpandPaths(ctx, args...)
	if err != nil {
		return err
	}

	var errs []error
	for _, path := range paths {
		job, err := service.LoadJob(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := validator.Validate(ctx, job.Spec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
	}
	return errors.Join(errs...)
}
