package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/volt-test/volt/internal/model"
	"github.com/volt-test/volt/internal/process"
	"github.com/volt-test/volt/internal/report"
	"github.com/volt-test/volt/internal/store"
)

// Record is the document published for a succeeded run.
type Record struct {
	Run            string                 `json:"run"`
	Job            string                 `json:"job"`
	Classification process.Classification `json:"classification"`
	ExitCode       *int                   `json:"exitCode,omitempty"`
	Started        time.Time              `json:"started"`
	Stopped        time.Time              `json:"stopped"`
	Report         report.Report          `json:"report"`
}

func NewRecord(res Result) Record {
	return Record{
		Run:            res.Run.String(),
		Job:            res.Job,
		Classification: res.Outcome.Classification,
		ExitCode:       res.Outcome.ExitCode,
		Started:        res.Outcome.Started,
		Stopped:        res.Outcome.Stopped,
		Report:         res.Report,
	}
}

// Publisher records runs in the history store and uploads the records of
// succeeded runs. Both are optional.
type Publisher struct {
	History   *sql.DB
	Uploaders []model.Uploader
}

// Begin marks run as in progress.
func (p Publisher) Begin(ctx context.Context, run, job string) {
	if p.History == nil {
		return
	}
	if err := store.Start(ctx, p.History, run, job); err != nil {
		slog.ErrorContext(ctx, "recording run start failed", "run", run, "error", err)
	}
}

// Publish finishes res in the history store and uploads its record when the
// run succeeded. The returned error is the run failure or the joined upload
// errors.
func (p Publisher) Publish(ctx context.Context, res Result) error {
	run := res.Run.String()
	// the run is over, record it even when ctx is already canceled
	hctx := context.WithoutCancel(ctx)
	p.Begin(hctx, run, res.Job)
	p.finish(hctx, run, res)

	if err := res.Err(); err != nil {
		return fmt.Errorf("job %s: %w", res.Job, err)
	}

	raw, err := json.Marshal(NewRecord(res))
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	var errs []error
	for _, u := range p.Uploaders {
		if err := u.Upload(ctx, res.Job, raw); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p Publisher) finish(ctx context.Context, run string, res Result) {
	if p.History == nil {
		return
	}
	out := res.Outcome
	var err error
	if out.Succeeded() {
		err = store.FinishOK(ctx, p.History, run, out.Classification.String(), *out.ExitCode)
	} else {
		err = store.FinishErr(ctx, p.History, run, out.Classification.String(), out.ExitCode, res.Err().Error())
	}
	if err != nil {
		slog.ErrorContext(ctx, "recording run finish failed", "run", run, "error", err)
	}
}

// Close closes every uploader implementing model.UploadCloser.
func (p Publisher) Close(ctx context.Context) {
	for _, uploader := range p.Uploaders {
		if closer, ok := uploader.(model.UploadCloser); ok {
			if err := closer.Close(); err != nil {
				slog.ErrorContext(ctx, "closing uploader have failed", "error", err)
			}
		}
	}
}
