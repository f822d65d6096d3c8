package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// Launch starts the engine described by cmd and hands it payload according
// to cmd.Input. In InputStdin mode the payload is not written yet; the caller
// writes it once the output channels are being drained.
//
// Launch never blocks on the child. On failure it returns a *LaunchError and
// every file it created is already released.
func Launch(ctx context.Context, cmd Command, payload []byte, term Terminator) (*Child, error) {
	if term == nil {
		term = NewTerminator()
	}
	path, err := Locate(cmd.Path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &LaunchError{Path: path, Err: err}
	}

	var cleanup []func() error
	fail := func(err error) (*Child, error) {
		for i := len(cleanup) - 1; i >= 0; i-- {
			_ = cleanup[i]()
		}
		return nil, &LaunchError{Path: path, Err: err}
	}

	var specPath string
	if cmd.Input == InputFile {
		specPath, err = writeSpecFile(cmd, payload)
		if err != nil {
			return fail(err)
		}
		cleanup = append(cleanup, func() error { return os.Remove(specPath) })
	}

	// Pipes are created here rather than with the exec.Cmd helpers: Wait
	// must not close the read ends while the pump is still reading them.
	var stdinR, stdinW *os.File
	if cmd.Input == InputStdin {
		stdinR, stdinW, err = os.Pipe()
		if err != nil {
			return fail(fmt.Errorf("creating input pipe: %w", err))
		}
		cleanup = append(cleanup, stdinR.Close, stdinW.Close)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return fail(fmt.Errorf("creating output pipe: %w", err))
	}
	cleanup = append(cleanup, stdoutR.Close, stdoutW.Close)
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		return fail(fmt.Errorf("creating diagnostic pipe: %w", err))
	}
	cleanup = append(cleanup, stderrR.Close, stderrW.Close)

	c := exec.Command(path, cmd.args(specPath)...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir
	if stdinR != nil {
		c.Stdin = stdinR
	}
	c.Stdout = stdoutW
	c.Stderr = stderrW
	term.Prepare(c)

	started := time.Now().UTC()
	if err := c.Start(); err != nil {
		return fail(err)
	}

	// The child holds its own copies now.
	var errs []error
	if stdinR != nil {
		errs = append(errs, stdinR.Close())
	}
	errs = append(errs, stdoutW.Close(), stderrW.Close())
	if err := errors.Join(errs...); err != nil {
		slog.WarnContext(ctx, "closing child side of pipes", "error", err)
	}

	child := newChild(c, stdinW, stdoutR, stderrR, specPath, started)
	slog.DebugContext(ctx, "engine started",
		"path", path,
		"args", c.Args[1:],
		"pid", child.PID(),
		"input", cmd.Input.String(),
	)
	return child, nil
}

func writeSpecFile(cmd Command, payload []byte) (string, error) {
	f, err := os.CreateTemp(cmd.TempDir, "volt-spec-*"+cmd.Format.Ext())
	if err != nil {
		return "", fmt.Errorf("creating spec file: %w", err)
	}
	_, werr := f.Write(payload)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("writing spec file: %w", err)
	}
	return f.Name(), nil
}
