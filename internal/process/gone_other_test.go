//go:build !unix

package process_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func requireGone(t *testing.T, pid int) {
	t.Helper()
	require.NotZero(t, pid)
	p, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	require.Error(t, p.Signal(os.Kill), "process %d still exists", pid)
}
