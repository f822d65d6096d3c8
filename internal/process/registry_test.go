//go:build unix

package process_test

import (
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/volt-test/volt/internal/process"
)

func TestRegistryRegister(t *testing.T) {
	t.Parallel()

	var r process.Registry
	require.NoError(t, r.Register(syscall.SIGUSR1))
	require.ErrorIs(t, r.Register(), process.ErrAlreadyRegistered)
	r.Unregister()
	r.Unregister()

	require.NoError(t, r.Register(syscall.SIGUSR1))
	r.Unregister()
}

func TestRegistryNoActiveExecution(t *testing.T) {
	t.Parallel()

	var code int
	r := process.Registry{Exit: func(c int) { code = c }}
	r.HandleSignal(os.Interrupt)
	require.Equal(t, 130, code)
}

func TestRegistryHandleSignal(t *testing.T) {
	t.Parallel()
	sh := shell(t)

	var (
		mx    sync.Mutex
		codes []int
	)
	var partial strings.Builder
	reg := &process.Registry{
		Exit: func(c int) {
			mx.Lock()
			codes = append(codes, c)
			mx.Unlock()
		},
		Partial: &partial,
	}

	stderr := &syncBuffer{}
	o := process.Orchestrator{
		Command:  script(sh, `cat >/dev/null; printf partial; echo ready >&2; sleep 30`),
		Policy:   process.Policy{GracePeriod: time.Second},
		Mirror:   process.Mirror{Stderr: stderr},
		Registry: reg,
	}

	outc := make(chan process.Outcome, 1)
	go func() {
		outc <- o.Execute(t.Context(), smallSpec)
	}()
	require.Eventually(t, func() bool {
		return strings.Contains(stderr.String(), "ready")
	}, 5*time.Second, 10*time.Millisecond)

	reg.HandleSignal(syscall.SIGTERM)

	out := <-outc
	require.Equal(t, process.Killed, out.Classification)
	var ie *process.InterruptedError
	require.ErrorAs(t, out.Err, &ie)
	require.Equal(t, syscall.SIGTERM, ie.Signal)
	require.Equal(t, "partial", out.Stdout)

	require.Equal(t, "partial", partial.String())
	mx.Lock()
	require.Equal(t, []int{143}, codes)
	mx.Unlock()
	requireGone(t, out.PID)
}

func TestExitCode(t *testing.T) {
	t.Parallel()
	require.Equal(t, 130, process.ExitCode(os.Interrupt))
	require.Equal(t, 143, process.ExitCode(syscall.SIGTERM))
	require.Equal(t, 1, process.ExitCode(fakeSignal{}))
}

type fakeSignal struct{}

func (fakeSignal) String() string { return "fake" }
func (fakeSignal) Signal()        {}
