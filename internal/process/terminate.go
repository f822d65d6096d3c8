package process

import (
	"os/exec"
	"time"
)

// DefaultGracePeriod is the time a child gets between the graceful stop
// request and the forceful kill.
const DefaultGracePeriod = 5 * time.Second

const groupPollInterval = 20 * time.Millisecond

// Policy bounds an execution. It is read-only once Execute starts.
type Policy struct {
	// MaxDuration is the execution budget, zero means unlimited.
	MaxDuration time.Duration
	// GracePeriod defaults to DefaultGracePeriod. It also bounds the time
	// spent draining output after the engine exits.
	GracePeriod time.Duration
	// Terminator defaults to the platform process group terminator.
	Terminator Terminator
}

func (p Policy) grace() time.Duration {
	if p.GracePeriod <= 0 {
		return DefaultGracePeriod
	}
	return p.GracePeriod
}

func (p Policy) terminator() Terminator {
	if p.Terminator == nil {
		return NewTerminator()
	}
	return p.Terminator
}

// Terminator is the platform strategy for stopping an engine together with
// every process it spawned.
type Terminator interface {
	// Prepare adjusts cmd before it is started, e.g. to place the child in
	// its own process group.
	Prepare(cmd *exec.Cmd)
	// Interrupt asks the process tree rooted at pid to stop.
	Interrupt(pid int) error
	// Kill forcefully stops the process tree rooted at pid.
	Kill(pid int) error
	// Alive reports whether a process spawned in the tree rooted at pid is
	// still running after pid itself was reaped.
	Alive(pid int) bool
}

// NewTerminator returns the process group terminator of the current platform.
func NewTerminator() Terminator {
	return groupTerminator{}
}
