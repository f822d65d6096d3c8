package process

import (
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/google/uuid"
)

// Classification is the final verdict of an execution.
type Classification int

const (
	FailedToStart Classification = iota
	Succeeded
	Failed
	TimedOut
	Killed
)

var classificationNames = map[Classification]string{
	FailedToStart: "failed_to_start",
	Succeeded:     "succeeded",
	Failed:        "failed",
	TimedOut:      "timed_out",
	Killed:        "killed",
}

func (c Classification) String() string {
	if s, ok := classificationNames[c]; ok {
		return s
	}
	return fmt.Sprintf("classification(%d)", int(c))
}

func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Classification) UnmarshalText(b []byte) error {
	for k, v := range classificationNames {
		if v == string(b) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown classification %q", b)
}

// Outcome is the immutable result of one execution.
type Outcome struct {
	ID             uuid.UUID      `json:"id"`
	Classification Classification `json:"classification"`
	// ExitCode is set when the engine exited on its own accord.
	ExitCode *int   `json:"exitCode,omitempty"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	// Err is the typed detail: *LaunchError, *WriteError, *TimeoutError,
	// *NonZeroExitError or *InterruptedError.
	Err     error     `json:"-"`
	PID     int       `json:"pid,omitempty"`
	Started time.Time `json:"started"`
	Stopped time.Time `json:"stopped"`
}

func (o Outcome) Succeeded() bool {
	return o.Classification == Succeeded
}

// Duration is the wall clock time of the execution.
func (o Outcome) Duration() time.Duration {
	if o.Started.IsZero() || o.Stopped.IsZero() {
		return 0
	}
	return o.Stopped.Sub(o.Started)
}

func failedToStart(id uuid.UUID, started time.Time, err error) Outcome {
	return Outcome{
		ID:             id,
		Classification: FailedToStart,
		Err:            err,
		Started:        started,
		Stopped:        time.Now().UTC(),
	}
}

// assemble folds the final state of an execution into an Outcome.
func assemble(child *Child, state State, cause error, pump *Pump, writeErr error) Outcome {
	out := Outcome{
		ID:      child.ID,
		PID:     child.PID(),
		Started: child.Started,
		Stopped: time.Now().UTC(),
		Stdout:  pump.Primary(),
		Stderr:  pump.Diagnostic(),
	}
	ps := child.State()
	if ps != nil && ps.Exited() {
		code := ps.ExitCode()
		out.ExitCode = &code
	}

	switch {
	case writeErr != nil:
		out.Classification = Failed
		out.Stdout = ""
		out.Err = &WriteError{Err: writeErr}
	case state == StateTimedOut:
		out.Classification = TimedOut
		out.Err = cause
		if out.Err == nil {
			out.Err = &TimeoutError{}
		}
	case state == StateKilled:
		out.Classification = Killed
		out.Err = cause
		if out.Err == nil {
			out.Err = &InterruptedError{}
		}
	case out.ExitCode != nil && *out.ExitCode == 0:
		out.Classification = Succeeded
	default:
		out.Classification = Failed
		out.Err = exitError(child, out.Stderr)
	}
	return out
}

func exitError(child *Child, stderr string) error {
	nz := &NonZeroExitError{Code: -1, Stderr: stderr}
	if ps := child.State(); ps != nil {
		nz.Code = ps.ExitCode()
		nz.State = ps.String()
	}
	var exitErr *exec.ExitError
	if err := child.WaitErr(); err != nil && !errors.As(err, &exitErr) {
		return fmt.Errorf("waiting for engine: %w", errors.Join(err, nz))
	}
	return nz
}
