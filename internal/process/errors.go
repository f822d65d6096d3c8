package process

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// LaunchError is returned when the engine could not be started. No channel
// was opened and no process exists.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("launching engine: %v", e.Err)
	}
	return fmt.Sprintf("launching engine %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// WriteError means the job specification could not be delivered on the
// input channel. Any output the engine produced is discarded.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing job specification: %v", e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// TimeoutError is the detail of a TimedOut outcome.
type TimeoutError struct {
	After time.Duration
	// Cause is the context error when the deadline came from the caller.
	Cause error
}

func (e *TimeoutError) Error() string {
	if e.After <= 0 {
		return "engine execution timed out"
	}
	return fmt.Sprintf("engine execution timed out after %s", e.After)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// NonZeroExitError is the detail of a Failed outcome. The engine diagnostic
// output is the message.
type NonZeroExitError struct {
	Code   int
	Stderr string
	// State is the textual process state, e.g. "signal: killed".
	State string
}

func (e *NonZeroExitError) Error() string {
	if msg := strings.TrimSpace(e.Stderr); msg != "" {
		return msg
	}
	if e.Code < 0 && e.State != "" {
		return "engine terminated: " + e.State
	}
	return fmt.Sprintf("engine exited with code %d", e.Code)
}

// InterruptedError is the detail of a Killed outcome.
type InterruptedError struct {
	Signal os.Signal
	Cause  error
}

func (e *InterruptedError) Error() string {
	switch {
	case e.Signal != nil:
		return fmt.Sprintf("engine interrupted by %s", e.Signal)
	case e.Cause != nil:
		return fmt.Sprintf("engine interrupted: %v", e.Cause)
	}
	return "engine interrupted"
}

func (e *InterruptedError) Unwrap() error { return e.Cause }
