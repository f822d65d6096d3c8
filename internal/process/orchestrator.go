package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/volt-test/volt/internal/jobspec"
	"github.com/volt-test/volt/internal/log"
)

const tracerName = "github.com/volt-test/volt/internal/process"

// Orchestrator runs the engine. The zero value runs volt-test from PATH with
// the job specification on stdin, no time budget and no console mirroring.
// Orchestrator is safe for concurrent use; executions share nothing but the
// Registry.
type Orchestrator struct {
	Command Command
	Policy  Policy
	Mirror  Mirror
	// Registry, when set, routes process signals to running executions.
	Registry  *Registry
	ChunkSize int
}

// Execute encodes spec, runs the engine with it and returns the outcome.
// It never returns before the process is reaped and all its channels and
// temporary files are released. Failures are reported in Outcome.Err.
func (o Orchestrator) Execute(ctx context.Context, spec any) Outcome {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "volt.execute",
		trace.WithAttributes(attribute.String("volt.input", o.Command.Input.String())),
	)
	defer span.End()

	out := o.execute(ctx, spec)

	span.SetAttributes(
		attribute.String("volt.run", out.ID.String()),
		attribute.Int("volt.pid", out.PID),
		attribute.String("volt.classification", out.Classification.String()),
	)
	if out.ExitCode != nil {
		span.SetAttributes(attribute.Int("volt.exit_code", *out.ExitCode))
	}
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Classification.String())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return out
}

func (o Orchestrator) execute(ctx context.Context, spec any) Outcome {
	started := time.Now().UTC()
	payload, err := jobspec.Encode(spec, o.Command.Format)
	if err != nil {
		return failedToStart(uuid.New(), started, fmt.Errorf("encoding job specification: %w", err))
	}

	term := o.Policy.terminator()
	child, err := Launch(ctx, o.Command, payload, term)
	if err != nil {
		slog.ErrorContext(ctx, "engine failed to start", "error", err)
		return failedToStart(uuid.New(), started, err)
	}
	defer func() {
		if err := child.Close(); err != nil {
			slog.WarnContext(ctx, "releasing engine channels", "error", err)
		}
	}()

	ctx = log.ContextAttrs(ctx, slog.Group("volt",
		slog.String("run", child.ID.String()),
		slog.Int("pid", child.PID()),
	))

	policy := o.Policy
	policy.Terminator = term
	ctrl := NewController(child, NewPump(o.Mirror, o.ChunkSize), policy)
	if o.Registry != nil {
		release := o.Registry.Activate(ctrl)
		defer release()
	}
	if err := ctrl.Start(); err != nil {
		if terr := ctrl.Terminate(); terr != nil {
			err = errors.Join(err, terr)
		}
		return failedToStart(child.ID, started, err)
	}

	writeDone := make(chan error, 1)
	go func() {
		err := child.writeInput(payload)
		if cerr := child.CloseInput(); err == nil {
			err = cerr
		}
		if err != nil && !errors.Is(err, os.ErrClosed) {
			// The engine is being stopped already, a broken pipe is expected.
			if s := ctrl.State(); s == StateTimedOut || s == StateKilled {
				writeDone <- nil
				return
			}
			slog.WarnContext(ctx, "engine rejected job specification", "error", err)
			if terr := ctrl.Terminate(); terr != nil {
				slog.ErrorContext(ctx, "terminating engine", "error", terr)
			}
			writeDone <- err
			return
		}
		writeDone <- nil
	}()

	state := ctrl.Await(ctx)
	writeErr := o.awaitInput(child, writeDone, policy.grace())

	out := assemble(child, state, ctrl.Cause(), ctrl.Pump(), writeErr)
	if err := ctrl.Pump().Errs(); err != nil {
		slog.WarnContext(ctx, "reading engine output", "error", err)
	}
	slog.InfoContext(ctx, "engine finished",
		"classification", out.Classification.String(),
		"duration", out.Duration().String(),
	)
	return out
}

// awaitInput waits for the input writer. A writer still blocked after the
// child exited (the input is held open by a grandchild) is released by
// closing the input channel.
func (o Orchestrator) awaitInput(child *Child, writeDone <-chan error, grace time.Duration) error {
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case err := <-writeDone:
		return err
	case <-t.C:
	}
	_ = child.CloseInput()
	return <-writeDone
}
