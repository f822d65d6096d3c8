package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Child is a running engine together with the parent ends of its channels.
// It is owned by exactly one execution.
type Child struct {
	ID      uuid.UUID
	Started time.Time

	cmd *exec.Cmd
	pid int

	stdin  *os.File // nil in InputFile mode
	stdout *os.File
	stderr *os.File

	specPath string

	done    chan struct{}
	waitErr error

	inputOnce sync.Once
	inputErr  error
	outOnce   sync.Once
	closeOnce sync.Once
	closeErr  error
}

func newChild(cmd *exec.Cmd, stdin, stdout, stderr *os.File, specPath string, started time.Time) *Child {
	c := &Child{
		ID:       uuid.New(),
		Started:  started,
		cmd:      cmd,
		pid:      cmd.Process.Pid,
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
		specPath: specPath,
		done:     make(chan struct{}),
	}
	go c.reap()
	return c
}

func (c *Child) reap() {
	c.waitErr = c.cmd.Wait()
	close(c.done)
}

func (c *Child) PID() int {
	return c.pid
}

// Done is closed once the process has been reaped.
func (c *Child) Done() <-chan struct{} {
	return c.done
}

// exited reports whether the process has been reaped.
func (c *Child) exited() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// State returns the process state, nil until Done is closed.
func (c *Child) State() *os.ProcessState {
	if !c.exited() {
		return nil
	}
	return c.cmd.ProcessState
}

// WaitErr returns the error of the reaped process, nil until Done is closed.
func (c *Child) WaitErr() error {
	if !c.exited() {
		return nil
	}
	return c.waitErr
}

// SpecPath is the temporary spec file in InputFile mode.
func (c *Child) SpecPath() string {
	return c.specPath
}

func (c *Child) writeInput(b []byte) error {
	if c.stdin == nil {
		return nil
	}
	_, err := c.stdin.Write(b)
	return err
}

// CloseInput closes the input channel, signalling end of input to the
// engine. Repeated calls return the result of the first one.
func (c *Child) CloseInput() error {
	c.inputOnce.Do(func() {
		if c.stdin != nil {
			c.inputErr = ignoreClosed(c.stdin.Close())
		}
	})
	return c.inputErr
}

// closeOutputs closes the read ends, a pending read returns os.ErrClosed.
func (c *Child) closeOutputs() error {
	var err error
	c.outOnce.Do(func() {
		err = errors.Join(
			ignoreClosed(c.stdout.Close()),
			ignoreClosed(c.stderr.Close()),
		)
	})
	return err
}

// Close releases every channel and removes the temporary spec file. It does
// not stop the process. Calling Close more than once is a no-op.
func (c *Child) Close() error {
	c.closeOnce.Do(func() {
		errs := []error{c.CloseInput(), c.closeOutputs()}
		if c.specPath != "" {
			if err := os.Remove(c.specPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, fmt.Errorf("removing spec file: %w", err))
			}
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

func ignoreClosed(err error) error {
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
