package storage

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("file not found")

// FileStorage keeps generated documents such as payslip PDFs
type FileStorage interface {
	// Upload stores file under path and returns the cleaned key
	Upload(ctx context.Context, file io.Reader, path string, contentType string) (string, error)
	Download(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) (bool, error)
	// URL returns where a stored key can be fetched from
	URL(path string) string
}
