package models

import (
	"bytes"
	"errors"
	"io"
	"os"
)

type sourceKind int

const (
	sourceNone sourceKind = iota
	sourcePath
	sourceBytes
)

// FileSource is either a path on disk or an in-memory buffer.
type FileSource struct {
	kind sourceKind
	path string
	data []byte
}

func PathSource(path string) FileSource {
	return FileSource{kind: sourcePath, path: path}
}

func BytesSource(data []byte) FileSource {
	return FileSource{kind: sourceBytes, data: data}
}

// Path reports the backing path, if the source is a file.
func (s FileSource) Path() (string, bool) {
	return s.path, s.kind == sourcePath
}

// Bytes reports the backing buffer, if the source is in memory.
func (s FileSource) Bytes() ([]byte, bool) {
	return s.data, s.kind == sourceBytes
}

func (s FileSource) Open() (io.ReadCloser, error) {
	switch s.kind {
	case sourcePath:
		return os.Open(s.path)
	case sourceBytes:
		return io.NopCloser(bytes.NewReader(s.data)), nil
	default:
		return nil, errors.New("models.FileSource: empty source")
	}
}
