//go:build windows

package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/windows"
)

// groupTerminator starts the engine in a new console process group. The
// graceful stop is CTRL_BREAK delivered to that group, the forceful one a
// taskkill of the whole tree.
type groupTerminator struct{}

func (groupTerminator) Prepare(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= windows.CREATE_NEW_PROCESS_GROUP
}

func (groupTerminator) Interrupt(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	if err := windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(pid)); err != nil {
		return fmt.Errorf("sending CTRL_BREAK to process group %d: %w", pid, err)
	}
	return nil
}

func (groupTerminator) Kill(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	err := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).Run()
	if err == nil {
		return nil
	}
	p, ferr := os.FindProcess(pid)
	if ferr != nil {
		return fmt.Errorf("taskkill %d: %w", pid, err)
	}
	if kerr := p.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
		return fmt.Errorf("killing process %d: %w", pid, kerr)
	}
	return nil
}

// Alive is always false: once the root is gone taskkill can no longer walk
// its tree.
func (groupTerminator) Alive(int) bool {
	return false
}
