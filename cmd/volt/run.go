package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/volt-test/volt/internal/log"
	"github.com/volt-test/volt/internal/model"
	"github.com/volt-test/volt/internal/parallel"
	"github.com/volt-test/volt/internal/process"
	"github.com/volt-test/volt/internal/report"
	"github.com/volt-test/volt/internal/service"
	"github.com/volt-test/volt/internal/store"
)

var flagParallel int

var runCmd = &cobra.Command{
	Use:   "run [SPEC|DIR...]",
	Short: "run executes job specifications, given or listed in service.specs",
	RunE:  doRun,
}

func doRun(cmd *cobra.Command, args []string) error {
	ctx := log.ContextAttrs(cmd.Context(), slog.Group("volt",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	))

	paths := args
	if len(paths) == 0 {
		paths = config.Service.Specs
	}
	if len(paths) == 0 {
		return errors.New("no job specification given: pass SPEC files or directories, or set service.specs")
	}
	paths, err := service.ExpandPaths(ctx, paths...)
	if err != nil {
		return err
	}
	jobs, err := service.LoadJobs(paths...)
	if err != nil {
		return err
	}

	orchestrator, err := newOrchestrator()
	if err != nil {
		return err
	}

	uploaders, err := service.Uploaders(ctx, config.Service)
	if err != nil {
		return fmt.Errorf("initializing uploaders: %w", err)
	}
	db, err := openHistory(ctx)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			_ = db.Close()
		}()
	}
	publisher := service.Publisher{History: db, Uploaders: uploaders}

	if config.Service.Mode == model.ServiceModeTimer {
		supervisor, err := service.NewSupervisor(ctx, config.Service, orchestrator, jobs...)
		if err != nil {
			return err
		}
		return supervisor.WithPublisher(publisher).Do(ctx)
	}

	defer publisher.Close(ctx)
	results, errs := parallel.Map(ctx, flagParallel, jobs, func(ctx context.Context, job service.Job) (service.Result, error) {
		out := orchestrator.Execute(log.ContextAttrs(ctx, slog.String("job", job.Name)), job.Spec)
		res := service.Result{Run: out.ID, Job: job.Name, Outcome: out}
		if out.Succeeded() {
			res.Report = report.Parse(out.Stdout)
		}
		return res, nil
	})

	var failures []error
	for i, res := range results {
		if errs[i] != nil {
			failures = append(failures, fmt.Errorf("job %s: %w", jobs[i].Name, errs[i]))
			continue
		}
		if err := publisher.Publish(ctx, res); err != nil {
			failures = append(failures, err)
		}
	}
	return errors.Join(failures...)
}

func newOrchestrator() (process.Orchestrator, error) {
	engine, err := service.ParseConfig("engine")
	if err != nil {
		return process.Orchestrator{}, fmt.Errorf("parsing engine config: %w", err)
	}
	o := process.Orchestrator{
		Command:  engine.Command(),
		Policy:   engine.Policy(),
		Registry: process.DefaultRegistry(),
	}
	if engine.Mirror {
		o.Mirror = process.Mirror{Stdout: os.Stdout, Stderr: os.Stderr}
	}
	return o, nil
}

// openHistory returns nil when service.history is not configured.
func openHistory(ctx context.Context) (*sql.DB, error) {
	if config.Service.History == nil {
		return nil, nil
	}
	db, err := store.InitDB(ctx, *config.Service.History)
	if err != nil {
		return nil, fmt.Errorf("opening history %s: %w", *config.Service.History, err)
	}
	return db, nil
}
