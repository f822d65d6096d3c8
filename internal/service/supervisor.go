package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	gocron "github.com/go-co-op/gocron/v2"

	"github.com/volt-test/volt/internal/model"
)

type Supervisor struct {
	start     chan struct{}
	runner    *Runner
	publisher Publisher
	jobs      []Job
	oneshot   bool
	scheduler gocron.Scheduler
}

// NewSupervisor prepares a Supervisor running jobs with exec. Manual mode
// runs a single round, timer mode starts a round on every tick of
// cfg.Schedule.
func NewSupervisor(ctx context.Context, cfg model.Service, exec Executor, jobs ...Job) (*Supervisor, error) {
	supervisor := &Supervisor{
		start:   make(chan struct{}, 1),
		runner:  NewRunner(exec),
		jobs:    slices.Clone(jobs),
		oneshot: cfg.Mode != model.ServiceModeTimer,
	}

	if !supervisor.oneshot {
		scheduler, err := newScheduler(ctx, cfg.Schedule, supervisor.Start)
		if err != nil {
			return nil, fmt.Errorf("timer mode failed: %w", err)
		}
		supervisor.scheduler = scheduler
	}
	return supervisor, nil
}

// WithPublisher sets where run history and records go.
func (s *Supervisor) WithPublisher(p Publisher) *Supervisor {
	s.publisher = p
	return s
}

// Start asks for a new round. It never blocks: a pending request absorbs
// further ones.
func (s *Supervisor) Start() {
	select {
	case s.start <- struct{}{}:
	default:
	}
}

// Do runs the supervisor event loop.
// It multiplexes three concerns:
//  1. Start triggers (s.start) start a round unless one is running.
//  2. Run results (runner.ResultsChan) are published and the next job of
//     the round is started.
//  3. Context cancellation terminates the loop; an active run is canceled
//     and its result published.
//
// Modes:
//   - Oneshot (manual): a round is triggered once on entry; Do returns
//     after it with the first run or upload error.
//   - Timer: errors are only logged; the loop runs until ctx is cancelled.
//
// Returns nil on cancellation, or the first error in oneshot mode.
func (s *Supervisor) Do(ctx context.Context) error {
	slog.DebugContext(ctx, "starting a supervisor", "jobs", len(s.jobs), "oneshot", s.oneshot)

	if s.scheduler != nil {
		s.scheduler.Start()
		defer func() {
			err := s.scheduler.Shutdown()
			if err != nil {
				slog.ErrorContext(ctx, "shutting down gocron has failed", "error", err)
			}
		}()
	}
	defer s.publisher.Close(ctx)
	defer s.runner.Close()

	if s.oneshot {
		s.Start()
	}

	var (
		pending  []Job
		firstErr error
	)
	for {
		select {
		case <-ctx.Done():
			if len(pending) > 0 {
				s.runner.Close()
				select {
				case res := <-s.runner.ResultsChan():
					if err := s.publisher.Publish(ctx, res); err != nil {
						slog.WarnContext(ctx, "run canceled", "job", res.Job, "run", res.Run.String(), "error", err)
					}
				default:
				}
			}
			return nil
		case <-s.start:
			if len(pending) > 0 {
				slog.WarnContext(ctx, "previous round still running: skipping", "pending", len(pending))
				continue
			}
			if len(s.jobs) == 0 {
				slog.WarnContext(ctx, "no jobs to run")
				if s.oneshot {
					return nil
				}
				continue
			}
			pending = slices.Clone(s.jobs)
			if err := s.startJob(ctx, pending[0]); err != nil {
				return err
			}
		case res := <-s.runner.ResultsChan():
			err := s.publisher.Publish(ctx, res)
			if err != nil {
				slog.ErrorContext(ctx, "run failed", "job", res.Job, "run", res.Run.String(), "error", err)
				if firstErr == nil {
					firstErr = err
				}
			} else {
				slog.InfoContext(ctx, "run succeeded", "job", res.Job, "run", res.Run.String())
			}

			if len(pending) > 0 {
				pending = pending[1:]
			}
			if len(pending) > 0 {
				if err := s.startJob(ctx, pending[0]); err != nil {
					return err
				}
				continue
			}
			if s.oneshot {
				return firstErr
			}
			firstErr = nil
		}
	}
}

func (s *Supervisor) startJob(ctx context.Context, job Job) error {
	run, err := s.runner.Start(ctx, job)
	if err != nil {
		return fmt.Errorf("starting job %s: %w", job.Name, err)
	}
	slog.DebugContext(ctx, "job started", "job", job.Name, "run", run.String())
	s.publisher.Begin(ctx, run.String(), job.Name)
	return nil
}

func newScheduler(ctx context.Context, cfgp *model.TimerSchedule, startFunc func()) (gocron.Scheduler, error) {
	if cfgp == nil {
		return nil, errors.New("service.schedule is nil")
	}
	cfg := *cfgp
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("parsing service.schedule: %w", err)
	}

	var job gocron.JobDefinition
	if cfg.Cron != "" {
		job = gocron.CronJob(cfg.Cron, false)
		slog.DebugContext(ctx, "successfully parsed", "cron", cfg.Cron)
	} else {
		d, _ := model.ParseISODuration(cfg.Duration)
		job = gocron.DurationJob(d)
		slog.DebugContext(ctx, "successfully parsed", "duration", d.String())
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		job,
		gocron.NewTask(startFunc),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("initializing gocron job: %w", err)
	}
	return s, nil
}
