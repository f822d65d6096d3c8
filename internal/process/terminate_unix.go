//go:build unix

package process

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// groupTerminator runs the engine as a process group leader and signals the
// whole group: SIGTERM first, SIGKILL after the grace period.
type groupTerminator struct{}

func (groupTerminator) Prepare(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

func (groupTerminator) Interrupt(pid int) error {
	return signalGroup(pid, unix.SIGTERM)
}

func (groupTerminator) Kill(pid int) error {
	return signalGroup(pid, unix.SIGKILL)
}

// Alive reports whether the process group still has members. The group id
// cannot be reused while one of them exists.
func (groupTerminator) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(-pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func signalGroup(pid int, sig unix.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	err := unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("sending %s to process group %d: %w", unix.SignalName(sig), pid, err)
	}
	return nil
}
