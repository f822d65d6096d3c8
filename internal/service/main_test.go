package service_test

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/volt-test/volt/internal/process"
)

const summary = `Test Metrics Summary:
===================
Duration:     2s
Total Reqs:   40
Success Rate: 100.00%
Req/sec:      20.00
Success Requests: 40
Failed Requests:  0
`

func shell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}
	return sh
}

func spec(name string) map[string]any {
	return map[string]any{"name": name, "virtual_users": 1}
}

// fakeEngine is an Executor which does not start any process. Jobs listed
// in fail exit with code 1, block holds every run until closed.
type fakeEngine struct {
	fail  map[string]bool
	block chan struct{}

	mx    sync.Mutex
	calls []string
}

func (f *fakeEngine) Execute(ctx context.Context, s any) process.Outcome {
	name, _ := s.(map[string]any)["name"].(string)
	f.mx.Lock()
	f.calls = append(f.calls, name)
	f.mx.Unlock()

	out := process.Outcome{ID: uuid.New(), Started: time.Now()}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			out.Classification = process.Killed
			out.Err = &process.InterruptedError{Cause: ctx.Err()}
			out.Stopped = time.Now()
			return out
		}
	}

	code := 0
	out.Classification = process.Succeeded
	out.Stdout = summary
	if f.fail[name] {
		code = 1
		out.Classification = process.Failed
		out.Stdout = ""
		out.Err = errors.New("boom")
	}
	out.ExitCode = &code
	out.Stopped = time.Now()
	return out
}

func (f *fakeEngine) Calls() []string {
	f.mx.Lock()
	defer f.mx.Unlock()
	return append([]string(nil), f.calls...)
}

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mx  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.String()
}
