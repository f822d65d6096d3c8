package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/volt-test/volt/internal/model"
)

// Uploaders builds the uploaders configured by cfg. Without a report
// directory and an enabled repository, records are written to stdout.
func Uploaders(_ context.Context, cfg model.Service) ([]model.Uploader, error) {
	repo := cfg.Repository
	repoEnabled := repo != nil && (repo.Enabled == nil || *repo.Enabled)
	if cfg.Dir == nil && !repoEnabled {
		return []model.Uploader{NewWriteUploader(os.Stdout)}, nil
	}

	var uploaders []model.Uploader
	if cfg.Dir != nil {
		u, err := NewOSRootUploader(*cfg.Dir)
		if err != nil {
			return nil, err
		}
		uploaders = append(uploaders, u)
	}
	if repoEnabled {
		u, err := NewHTTPUploader(repo.URL, repo.Auth)
		if err != nil {
			return nil, err
		}
		uploaders = append(uploaders, u)
	}
	return uploaders, nil
}

type WriteUploader struct {
	w io.Writer
}

func NewWriteUploader(w io.Writer) WriteUploader {
	return WriteUploader{w: w}
}

// Upload writes raw followed by a newline.
func (u WriteUploader) Upload(_ context.Context, _ string, raw []byte) error {
	w := u.w
	if w == nil {
		w = os.Stdout
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// OSRootUploader stores every record as a file inside a directory.
type OSRootUploader struct {
	root *os.Root
	now  func() time.Time
}

func NewOSRootUploader(path string) (*OSRootUploader, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(path)
	if err != nil {
		return nil, err
	}
	return &OSRootUploader{root: root, now: time.Now}, nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// FileName returns the file name of a record of job created at t.
func FileName(job string, t time.Time) string {
	name := unsafeName.ReplaceAllString(job, "_")
	if name == "" || name == "." || name == ".." {
		name = "run"
	}
	return "volt-" + name + "-" + t.Format("2006-01-02-15-04-05.000") + ".json"
}

func (u *OSRootUploader) Upload(ctx context.Context, job string, b []byte) error {
	if u.root == nil {
		return errors.New("root already closed")
	}

	path := FileName(job, u.now())
	f, err := u.root.Create(path)
	if err != nil {
		return fmt.Errorf("creating volt results: %w", err)
	}
	_, err = f.Write(b)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("saving volt results: %w", err)
	}
	err = f.Close()
	if err != nil {
		return fmt.Errorf("closing volt result: %w", err)
	}
	slog.InfoContext(ctx, "report saved", "path", path)
	return nil
}

func (u *OSRootUploader) Close() error {
	if u.root == nil {
		return errors.New("uploader already closed")
	}
	err := u.root.Close()
	u.root = nil
	return err
}
