package store_test

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/volt-test/volt/internal/store"
)

func initDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.InitDB(t.Context(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	db := initDB(t)

	const id = "4a4f1d33-5d42-4c1d-8c2f-2cf1c2e8c0a1"
	require.NoError(t, store.Start(ctx, db, id, "checkout"))
	require.NoError(t, store.Start(ctx, db, id, "checkout"))

	row, err := store.Get(ctx, db, id)
	require.NoError(t, err)
	require.Equal(t, id, row.UUID)
	require.Equal(t, "checkout", row.Job)
	require.True(t, row.InProgress)
	require.Nil(t, row.Success)
	require.Nil(t, row.Finished)
	require.Zero(t, row.Duration())

	require.NoError(t, store.FinishOK(ctx, db, id, "succeeded", 0))
	require.ErrorIs(t, store.FinishOK(ctx, db, id, "succeeded", 0), store.ErrAlreadyFinished)
	require.ErrorIs(t, store.FinishErr(ctx, db, id, "failed", nil, "late"), store.ErrAlreadyFinished)
	require.ErrorIs(t, store.Start(ctx, db, id, "checkout"), store.ErrAlreadyFinished)

	row, err = store.Get(ctx, db, id)
	require.NoError(t, err)
	require.False(t, row.InProgress)
	require.NotNil(t, row.Success)
	require.True(t, *row.Success)
	require.Equal(t, "succeeded", *row.Classification)
	require.Equal(t, 0, *row.ExitCode)
	require.Nil(t, row.FailureReason)
	require.NotNil(t, row.Finished)
	require.False(t, row.Finished.Before(row.Started))

	require.NoError(t, store.Delete(ctx, db, id))
	require.ErrorIs(t, store.Delete(ctx, db, id), store.ErrNotFound)
	_, err = store.Get(ctx, db, id)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestFinishErr(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	db := initDB(t)

	require.ErrorIs(t, store.FinishErr(ctx, db, "missing", "failed", nil, "boom"), store.ErrNotFound)

	require.NoError(t, store.Start(ctx, db, "a", "login"))
	require.NoError(t, store.FinishErr(ctx, db, "a", "timed_out", nil, "engine execution timed out after 1m0s"))
	code := 7
	require.NoError(t, store.Start(ctx, db, "b", "login"))
	require.NoError(t, store.FinishErr(ctx, db, "b", "failed", &code, "boom"))

	row, err := store.Get(ctx, db, "a")
	require.NoError(t, err)
	require.False(t, *row.Success)
	require.Equal(t, "timed_out", *row.Classification)
	require.Nil(t, row.ExitCode)
	require.Equal(t, "engine execution timed out after 1m0s", *row.FailureReason)

	row, err = store.Get(ctx, db, "b")
	require.NoError(t, err)
	require.Equal(t, 7, *row.ExitCode)
	require.Equal(t, `uuid: "b", job: "login", in_progress: false, classification: failed, exit_code: 7, failure_reason: "boom"`, row.String())
}

func TestList(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	db := initDB(t)

	rows, err := store.List(ctx, db, 10)
	require.NoError(t, err)
	require.Empty(t, rows)

	for _, id := range []string{"first", "second", "third"} {
		require.NoError(t, store.Start(ctx, db, id, "job-"+id))
	}

	rows, err = store.List(ctx, db, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "third", rows[0].UUID)
	require.Equal(t, "second", rows[1].UUID)

	rows, err = store.List(ctx, db, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "first", rows[2].UUID)
}
