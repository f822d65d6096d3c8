// Package store keeps the history of engine runs in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyFinished = errors.New("already finished")
)

type Run struct {
	UUID           string
	Job            string
	InProgress     bool
	Started        time.Time
	Finished       *time.Time
	Success        *bool
	Classification *string
	ExitCode       *int
	FailureReason  *string
}

type RunRow struct {
	Run
	ID int
}

func (r RunRow) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "uuid: %q, job: %q, in_progress: %t", r.UUID, r.Job, r.InProgress)
	if r.Classification != nil {
		fmt.Fprintf(&sb, ", classification: %s", *r.Classification)
	}
	if r.ExitCode != nil {
		fmt.Fprintf(&sb, ", exit_code: %d", *r.ExitCode)
	}
	if r.FailureReason != nil {
		fmt.Fprintf(&sb, ", failure_reason: %q", *r.FailureReason)
	}
	return sb.String()
}

// Duration returns the run time of a finished run and zero otherwise.
func (r Run) Duration() time.Duration {
	if r.Finished == nil {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

func InitDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uuid TEXT NOT NULL UNIQUE,
			job TEXT NOT NULL,
			in_progress BOOLEAN NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER DEFAULT NULL,
			success BOOLEAN DEFAULT NULL,
			classification TEXT DEFAULT NULL,
			exit_code INTEGER DEFAULT NULL,
			failure_reason TEXT DEFAULT NULL
		)`,
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func rollback(ctx context.Context, tx *sql.Tx, uuid string) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.ErrorContext(ctx, "Calling `tx.Rollback()` failed.", slog.String("uuid", uuid), slog.String("error", err.Error()))
	}
}

// inProgress returns the in_progress flag of run 'uuid' or ErrNotFound.
func inProgress(ctx context.Context, tx *sql.Tx, uuid string) (bool, error) {
	var running bool
	err := tx.QueryRowContext(ctx, `SELECT in_progress FROM runs WHERE uuid=?`, uuid).Scan(&running)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, ErrNotFound
	case err != nil:
		return false, fmt.Errorf("executing sql query failed: %w", err)
	}
	return running, nil
}

// Start persists that a run of job identified by 'uuid' is in progress.
// If the run is still in progress, no error is returned,
// if it has already finished ErrAlreadyFinished is returned.
func Start(ctx context.Context, db *sql.DB, uuid, job string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(ctx, tx, uuid)

	running, err := inProgress(ctx, tx, uuid)
	switch {
	case err == nil && running:
		return nil
	case err == nil && !running:
		return ErrAlreadyFinished
	case !errors.Is(err, ErrNotFound):
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (uuid, job, in_progress, started_at) VALUES (?,?,?,?);`,
		uuid, job, true, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("executing sql insert failed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction failed: %w", err)
	}
	return nil
}

// FinishOK stores that run 'uuid' has finished successfully with its
// classification and exit code. ErrAlreadyFinished is returned for a run
// which is not in progress.
func FinishOK(ctx context.Context, db *sql.DB, uuid, classification string, exitCode int) error {
	return finish(ctx, db, uuid,
		`UPDATE runs
		 SET
			in_progress = false,
			finished_at = ?,
			success = true,
			classification = ?,
			exit_code = ?
		WHERE uuid = ?;`,
		time.Now().UnixNano(), classification, exitCode, uuid,
	)
}

// FinishErr stores that run 'uuid' has failed and the failure reason with it.
// exitCode is nil when the engine did not exit on its own.
func FinishErr(ctx context.Context, db *sql.DB, uuid, classification string, exitCode *int, reason string) error {
	return finish(ctx, db, uuid,
		`UPDATE runs
		 SET
			in_progress = false,
			finished_at = ?,
			success = false,
			classification = ?,
			exit_code = ?,
			failure_reason = ?
		WHERE uuid = ?;`,
		time.Now().UnixNano(), classification, exitCode, reason, uuid,
	)
}

func finish(ctx context.Context, db *sql.DB, uuid, query string, args ...any) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(ctx, tx, uuid)

	running, err := inProgress(ctx, tx, uuid)
	if err != nil {
		return err
	}
	if !running {
		return ErrAlreadyFinished
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("executing sql update failed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction failed: %w", err)
	}
	return nil
}

const selectRuns = `SELECT id, uuid, job, in_progress, started_at, finished_at, success, classification, exit_code, failure_reason FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (RunRow, error) {
	var (
		row      RunRow
		started  int64
		finished *int64
	)
	err := s.Scan(
		&row.ID,
		&row.UUID,
		&row.Job,
		&row.InProgress,
		&started,
		&finished,
		&row.Success,
		&row.Classification,
		&row.ExitCode,
		&row.FailureReason,
	)
	if err != nil {
		return RunRow{}, err
	}
	row.Started = time.Unix(0, started)
	if finished != nil {
		t := time.Unix(0, *finished)
		row.Finished = &t
	}
	return row, nil
}

// Get returns a run identified by 'uuid' on success,
// ErrNotFound when it does not exist, error otherwise.
func Get(ctx context.Context, db *sql.DB, uuid string) (RunRow, error) {
	row, err := scanRow(db.QueryRowContext(ctx, selectRuns+` WHERE uuid=?`, uuid))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return RunRow{}, ErrNotFound
	case err != nil:
		return RunRow{}, fmt.Errorf("executing sql query failed: %w", err)
	}
	return row, nil
}

// List returns up to limit runs, most recent first. limit <= 0 returns all.
func List(ctx context.Context, db *sql.DB, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, selectRuns+` ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("executing sql query failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ret []RunRow
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row failed: %w", err)
		}
		ret = append(ret, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows failed: %w", err)
	}
	return ret, nil
}

func Delete(ctx context.Context, db *sql.DB, uuid string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM runs WHERE uuid=?`, uuid)
	if err != nil {
		return fmt.Errorf("executing sql delete failed: %w", err)
	}

	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("fetching affected rows failed: %w", err)
	}
	if ra != 1 {
		return ErrNotFound
	}
	return nil
}
