// Package filestore keeps the bytes of artifacts recorded for users.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"mygizmo/internal/models"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidName = errors.New("invalid file name")
	ErrExists      = errors.New("file already exists")
)

type Store interface {
	Save(ctx context.Context, name string, r io.Reader) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Delete succeeds when the file is already gone.
	Delete(ctx context.Context, name string) error
}

// New builds the store selected by cfg.FileStore.Backend.
func New(ctx context.Context, cfg *models.Config) (Store, error) {
	switch cfg.FileStore.Backend {
	case "", "local":
		return NewLocal(cfg.UserFilesDir)
	case "s3":
		return NewS3(ctx, cfg.FileStore)
	default:
		return nil, fmt.Errorf("filestore.New: unknown backend %q", cfg.FileStore.Backend)
	}
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
