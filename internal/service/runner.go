package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/volt-test/volt/internal/process"
	"github.com/volt-test/volt/internal/report"
)

var (
	ErrRunNotStarted = errors.New("run not started")
	ErrRunInProgress = errors.New("run in progress")
	ErrRunnerClosed  = errors.New("runner closed")
)

// Executor runs a job specification to completion.
// process.Orchestrator is the production implementation.
type Executor interface {
	Execute(ctx context.Context, spec any) process.Outcome
}

// Result is a finished run of a Job.
type Result struct {
	Run     uuid.UUID
	Job     string
	Outcome process.Outcome
	// Report is parsed from the engine output of a succeeded run.
	Report report.Report
}

// Err is nil for a succeeded run.
func (r Result) Err() error {
	switch {
	case r.Outcome.Succeeded():
		return nil
	case r.Outcome.Err != nil:
		return r.Outcome.Err
	default:
		return fmt.Errorf("engine run %s", r.Outcome.Classification)
	}
}

// Runner executes one Job at a time and delivers a Result for every run on
// ResultsChan.
type Runner struct {
	exec Executor

	mx      sync.Mutex
	started bool
	running bool
	cancel  context.CancelFunc
	last    Result

	// sendMx keeps results in start order
	sendMx    sync.Mutex
	results   chan Result
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewRunner(exec Executor) *Runner {
	return &Runner{
		exec:    exec,
		results: make(chan Result, 1),
		closed:  make(chan struct{}),
	}
}

// Start runs job in the background and returns the id of the run.
func (r *Runner) Start(ctx context.Context, job Job) (uuid.UUID, error) {
	r.mx.Lock()
	defer r.mx.Unlock()

	select {
	case <-r.closed:
		return uuid.Nil, ErrRunnerClosed
	default:
	}
	if r.running {
		return uuid.Nil, ErrRunInProgress
	}

	ctx, cancel := context.WithCancel(ctx)
	id := uuid.New()
	r.started = true
	r.running = true
	r.cancel = cancel

	r.wg.Go(func() {
		defer cancel()
		out := r.exec.Execute(ctx, job.Spec)
		res := Result{Run: id, Job: job.Name, Outcome: out}
		if out.Succeeded() {
			res.Report = report.Parse(out.Stdout)
		}

		r.sendMx.Lock()
		defer r.sendMx.Unlock()

		r.mx.Lock()
		r.running = false
		r.cancel = nil
		r.last = res
		r.mx.Unlock()

		select {
		case r.results <- res:
		case <-r.closed:
			select {
			case r.results <- res:
			default:
			}
		}
	})
	return id, nil
}

// ResultsChan delivers the Result of every run.
func (r *Runner) ResultsChan() <-chan Result {
	return r.results
}

// LastResult returns the Result of the most recent finished run.
func (r *Runner) LastResult() (Result, error) {
	r.mx.Lock()
	defer r.mx.Unlock()
	switch {
	case !r.started:
		return Result{}, ErrRunNotStarted
	case r.running:
		return Result{}, ErrRunInProgress
	}
	return r.last, nil
}

// Close cancels an active run and waits until its engine is gone. The result
// of the canceled run stays on ResultsChan if there is room for it.
func (r *Runner) Close() {
	r.closeOnce.Do(func() {
		r.mx.Lock()
		close(r.closed)
		if r.cancel != nil {
			r.cancel()
		}
		r.mx.Unlock()
	})
	r.wg.Wait()
}
