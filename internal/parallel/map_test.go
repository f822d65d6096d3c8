package parallel_test

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/volt-test/volt/internal/parallel"
)

func sleep(ctx context.Context, d time.Duration) (int, error) {
	select {
	case <-time.After(d):
		return int(d / time.Second), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func TestMap(t *testing.T) {
	t.Parallel()

	input := []time.Duration{5 * time.Second, 1 * time.Second, 10 * time.Second, 2 * time.Second}
	expected := []int{5, 1, 10, 2}

	var testCases = []struct {
		scenario string
		limit    int
		then     time.Duration
	}{
		{"limit 1", 1, 18 * time.Second},
		{"limit 2", 2, 11 * time.Second},
		{"limit 10", 10, 10 * time.Second},
		{"unbounded", 0, 10 * time.Second},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			synctest.Test(t, func(t *testing.T) {
				start := time.Now()
				out, errs := parallel.Map(t.Context(), tt.limit, input, sleep)
				require.Equal(t, expected, out)
				require.Equal(t, make([]error, len(input)), errs)
				require.Equal(t, tt.then, time.Since(start))
			})
		})
	}
}

func TestMapCancel(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), 1500*time.Millisecond)
		defer cancel()

		input := []time.Duration{1 * time.Second, 2 * time.Second, 5 * time.Second}
		start := time.Now()
		out, errs := parallel.Map(ctx, 1, input, sleep)
		require.Equal(t, 1500*time.Millisecond, time.Since(start))

		require.Equal(t, []int{1, 0, 0}, out)
		require.NoError(t, errs[0])
		require.ErrorIs(t, errs[1], context.DeadlineExceeded)
		require.ErrorIs(t, errs[2], context.DeadlineExceeded)
	})
}

func TestMapErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	out, errs := parallel.Map(t.Context(), 2, []int{1, 2, 3}, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n * 10, nil
	})
	require.Equal(t, []int{10, 0, 30}, out)
	require.NoError(t, errs[0])
	require.ErrorIs(t, errs[1], boom)
	require.NoError(t, errs[2])
}
