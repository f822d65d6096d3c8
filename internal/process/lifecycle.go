package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// State of a supervised child.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateCompleted
	StateTimedOut
	StateKilled
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed out"
	case StateKilled:
		return "killed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether s is one of the final states.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

var ErrAlreadyStarted = errors.New("controller already started")

// Controller drives a Child through its lifecycle: it starts the pump,
// enforces the execution budget, reacts to cancellation and interrupts, and
// stops the process tree when needed. The first terminal transition wins.
type Controller struct {
	child  *Child
	pump   *Pump
	policy Policy

	mx     sync.Mutex
	state  State
	cause  error
	signal os.Signal

	termMx sync.Mutex

	interruptOnce sync.Once
	interrupt     chan struct{}
	finished      chan struct{}
	finishOnce    sync.Once
}

func NewController(child *Child, pump *Pump, policy Policy) *Controller {
	return &Controller{
		child:     child,
		pump:      pump,
		policy:    policy,
		interrupt: make(chan struct{}),
		finished:  make(chan struct{}),
	}
}

// Start moves the controller to StateRunning and starts draining the child
// output.
func (c *Controller) Start() error {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.state != StateNotStarted {
		return ErrAlreadyStarted
	}
	c.state = StateRunning
	c.pump.Start(c.child.stdout, c.child.stderr)
	return nil
}

func (c *Controller) State() State {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.state
}

// Done is closed once the child has been reaped.
func (c *Controller) Done() <-chan struct{} {
	return c.child.Done()
}

// Finished is closed when Await returned, the child is reaped and its output
// drained.
func (c *Controller) Finished() <-chan struct{} {
	return c.finished
}

func (c *Controller) Pump() *Pump {
	return c.pump
}

// Interrupt requests the child to be stopped as killed. It does not wait.
func (c *Controller) Interrupt() {
	c.interruptWith(nil)
}

func (c *Controller) interruptWith(sig os.Signal) {
	c.interruptOnce.Do(func() {
		c.mx.Lock()
		c.signal = sig
		c.mx.Unlock()
		close(c.interrupt)
	})
}

// transition moves a running controller to a terminal state.
func (c *Controller) transition(to State, cause error) bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.state != StateRunning {
		return false
	}
	c.state = to
	c.cause = cause
	return true
}

// Await blocks until the child finishes, the budget elapses, ctx ends or
// Interrupt is called, and returns the terminal state. Once Await returns the
// child is reaped and both output channels are drained or closed.
func (c *Controller) Await(ctx context.Context) State {
	defer c.finishOnce.Do(func() { close(c.finished) })
	if c.State() == StateNotStarted {
		_ = c.Start()
	}

	var budget <-chan time.Time
	if d := c.policy.MaxDuration; d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		budget = t.C
	}

	select {
	case <-c.child.Done():
	case <-budget:
		c.stop(StateTimedOut, &TimeoutError{After: c.policy.MaxDuration})
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.stop(StateTimedOut, &TimeoutError{Cause: ctx.Err()})
		} else {
			c.stop(StateKilled, &InterruptedError{Cause: ctx.Err()})
		}
	case <-c.interrupt:
		c.mx.Lock()
		sig := c.signal
		c.mx.Unlock()
		c.stop(StateKilled, &InterruptedError{Signal: sig})
	}

	<-c.child.Done()
	c.transition(StateCompleted, nil)
	c.drain(ctx)
	return c.State()
}

func (c *Controller) stop(to State, cause error) {
	if c.child.exited() {
		return
	}
	if !c.transition(to, cause) {
		return
	}
	if err := c.Terminate(); err != nil {
		slog.Error("terminating engine", "pid", c.child.PID(), "error", err)
	}
}

// Terminate stops the child: a graceful request to the whole process group,
// then, after the grace period, a forceful kill of every member still alive,
// then it waits for the child to be reaped. The group is killed even when the
// leader obeyed the graceful request. A child that already exited on its own
// is never signalled and Terminate returns nil. Concurrent calls are
// serialized.
func (c *Controller) Terminate() error {
	c.termMx.Lock()
	defer c.termMx.Unlock()

	if c.child.exited() {
		return nil
	}
	c.transition(StateKilled, &InterruptedError{})

	pid := c.child.PID()
	term := c.policy.terminator()
	if err := term.Interrupt(pid); err != nil {
		slog.Debug("graceful stop failed, killing", "pid", pid, "error", err)
	} else {
		c.awaitGroup(term, pid)
	}

	if !c.child.exited() || term.Alive(pid) {
		if err := term.Kill(pid); err != nil {
			return err
		}
	}
	<-c.child.Done()
	return nil
}

// awaitGroup waits up to the grace period for the process group to end.
func (c *Controller) awaitGroup(term Terminator, pid int) {
	t := time.NewTimer(c.policy.grace())
	defer t.Stop()
	select {
	case <-c.child.Done():
	case <-t.C:
		return
	}

	tick := time.NewTicker(groupPollInterval)
	defer tick.Stop()
	for term.Alive(pid) {
		select {
		case <-tick.C:
		case <-t.C:
			return
		}
	}
}

// drain waits for the pump after the child exited. Grandchildren may keep the
// channels open; after the grace period the read ends are closed so the pump
// sees end of stream.
func (c *Controller) drain(ctx context.Context) {
	t := time.NewTimer(c.policy.grace())
	defer t.Stop()
	select {
	case <-c.pump.Done():
		return
	case <-t.C:
	}
	slog.WarnContext(ctx, "engine output still open after exit, closing it", "pid", c.child.PID())
	if err := c.child.closeOutputs(); err != nil {
		slog.WarnContext(ctx, "closing output channels", "error", err)
	}
	<-c.pump.Done()
}

// Cause returns the detail of a timed out or killed state.
func (c *Controller) Cause() error {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.cause
}
