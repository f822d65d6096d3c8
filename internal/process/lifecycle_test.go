package process_test

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/volt-test/volt/internal/process"
)

func launch(t *testing.T, body string) *process.Child {
	t.Helper()
	sh := shell(t)
	cmd := script(sh, body)
	cmd.Input = process.InputFile
	cmd.TempDir = t.TempDir()
	child, err := process.Launch(t.Context(), cmd, []byte("{}"), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, child.Close())
	})
	return child
}

func TestTerminateIdempotent(t *testing.T) {
	t.Parallel()

	child := launch(t, `sleep 30`)
	ctrl := process.NewController(child, process.NewPump(process.Mirror{}, 0), process.Policy{GracePeriod: time.Second})
	require.Equal(t, process.StateNotStarted, ctrl.State())
	require.NoError(t, ctrl.Start())
	require.ErrorIs(t, ctrl.Start(), process.ErrAlreadyStarted)
	require.Equal(t, process.StateRunning, ctrl.State())

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Go(func() {
			errs[i] = ctrl.Terminate()
		})
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	select {
	case <-ctrl.Done():
	default:
		t.Fatal("child not reaped after Terminate")
	}
	require.NoError(t, ctrl.Terminate())

	require.Equal(t, process.StateKilled, ctrl.Await(t.Context()))
	require.True(t, ctrl.State().Terminal())
	<-ctrl.Finished()
	requireGone(t, child.PID())
}

type countingTerminator struct {
	process.Terminator
	kills atomic.Int32
}

func (c *countingTerminator) Kill(pid int) error {
	c.kills.Add(1)
	return c.Terminator.Kill(pid)
}

func TestTerminateKillsGroup(t *testing.T) {
	t.Parallel()

	// the leader obeys SIGTERM, its worker does not
	child := launch(t, `(trap '' TERM; echo ready; exec sleep 30) & exec sleep 30`)
	term := &countingTerminator{Terminator: process.NewTerminator()}
	pump := process.NewPump(process.Mirror{}, 0)
	const grace = 300 * time.Millisecond
	ctrl := process.NewController(child, pump, process.Policy{GracePeriod: grace, Terminator: term})
	require.NoError(t, ctrl.Start())
	require.Eventually(t, func() bool {
		return strings.Contains(pump.Primary(), "ready")
	}, 5*time.Second, 10*time.Millisecond)

	start := time.Now()
	require.NoError(t, ctrl.Terminate())
	require.GreaterOrEqual(t, time.Since(start), grace)
	require.Equal(t, int32(1), term.kills.Load())

	require.Equal(t, process.StateKilled, ctrl.Await(t.Context()))
	requireGone(t, child.PID())
}

func TestAwaitCompleted(t *testing.T) {
	t.Parallel()

	child := launch(t, `printf ok`)
	pump := process.NewPump(process.Mirror{}, 0)
	ctrl := process.NewController(child, pump, process.Policy{})
	require.NoError(t, ctrl.Start())

	require.Equal(t, process.StateCompleted, ctrl.Await(t.Context()))
	require.Equal(t, "ok", pump.Primary())
	require.NoError(t, pump.Wait())
	require.NotNil(t, child.State())
	require.True(t, child.State().Success())

	// a late interrupt does not change a terminal state
	ctrl.Interrupt()
	require.NoError(t, ctrl.Terminate())
	require.Equal(t, process.StateCompleted, ctrl.State())
}

func TestAwaitInterrupt(t *testing.T) {
	t.Parallel()

	child := launch(t, `sleep 30`)
	ctrl := process.NewController(child, process.NewPump(process.Mirror{}, 0), process.Policy{GracePeriod: time.Second})
	time.AfterFunc(100*time.Millisecond, ctrl.Interrupt)

	require.Equal(t, process.StateKilled, ctrl.Await(t.Context()))
	var ie *process.InterruptedError
	require.ErrorAs(t, ctrl.Cause(), &ie)
	require.Nil(t, ie.Signal)
}

func TestGracefulStopIgnored(t *testing.T) {
	t.Parallel()

	// The engine ignores the graceful request and is killed after the grace
	// period.
	child := launch(t, `trap '' TERM; printf ready; while :; do sleep 1; done`)
	pump := process.NewPump(process.Mirror{}, 0)
	ctrl := process.NewController(child, pump, process.Policy{
		MaxDuration: 300 * time.Millisecond,
		GracePeriod: 300 * time.Millisecond,
	})
	require.NoError(t, ctrl.Start())

	start := time.Now()
	require.Equal(t, process.StateTimedOut, ctrl.Await(t.Context()))
	require.GreaterOrEqual(t, time.Since(start), 600*time.Millisecond)
	require.Less(t, time.Since(start), 5*time.Second)
	require.Equal(t, "ready", pump.Primary())
	requireGone(t, child.PID())
}

func TestChildClose(t *testing.T) {
	t.Parallel()

	child := launch(t, `true`)
	require.FileExists(t, child.SpecPath())
	<-child.Done()

	require.NoError(t, child.Close())
	require.NoError(t, child.Close())
	require.NoError(t, child.CloseInput())
	require.NoFileExists(t, child.SpecPath())
}
