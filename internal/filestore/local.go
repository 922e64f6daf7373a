package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local keeps files flat in one directory.
type Local struct {
	basePath string
}

func NewLocal(basePath string) (*Local, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, err
	}
	return &Local{basePath: basePath}, nil
}

func (l *Local) path(name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	return filepath.Join(l.basePath, name), nil
}

func (l *Local) Save(_ context.Context, name string, r io.Reader) error {
	const op = "filestore.Local.Save"
	p, err := l.path(name)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%s: %w: %s", op, ErrExists, name)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(p)
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (l *Local) Open(_ context.Context, name string) (io.ReadCloser, error) {
	const op = "filestore.Local.Open"
	p, err := l.path(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w: %s", op, ErrNotFound, name)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return f, nil
}

func (l *Local) Delete(_ context.Context, name string) error {
	const op = "filestore.Local.Delete"
	p, err := l.path(name)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
