// internal/core/ports/storage.go
package ports

import (
	"context"
	"io"
	"time"
)

// FileStorage holds uploaded import files between the API and the worker
type FileStorage interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// ListOlderThan returns keys under prefix last modified before cutoff.
	ListOlderThan(ctx context.Context, prefix string, cutoff time.Time) ([]string, error)
}
