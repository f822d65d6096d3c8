package model

import "context"

// Uploader publishes the JSON record of a finished run under name.
type Uploader interface {
	Upload(ctx context.Context, name string, raw []byte) error
}

type UploadCloser interface {
	Uploader
	Close() error
}
