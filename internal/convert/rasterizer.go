package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
)

var ErrRasterizerUnavailable = errors.New("PDF rasterizer unavailable (is poppler installed?)")

// Rasterizer renders PDF pages as JPEG images, in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf io.Reader) ([][]byte, error)
}

// Poppler shells out to pdftoppm.
type Poppler struct {
	Binary  string
	DPI     int
	TempDir string
}

func NewPoppler(tempDir string) *Poppler {
	return &Poppler{Binary: "pdftoppm", DPI: 200, TempDir: tempDir}
}

// Available reports whether the binary can be found.
func (p *Poppler) Available() bool {
	_, err := exec.LookPath(p.Binary)
	return err == nil
}

func (p *Poppler) Rasterize(ctx context.Context, pdf io.Reader) ([][]byte, error) {
	const op = "convert.Poppler.Rasterize"

	bin, err := exec.LookPath(p.Binary)
	if err != nil {
		return nil, ErrRasterizerUnavailable
	}

	dir, err := os.MkdirTemp(p.TempDir, "pdf2jpg-")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input.pdf")
	f, err := os.Create(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := io.Copy(f, pdf); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-jpeg", "-r", fmt.Sprint(p.DPI), in, filepath.Join(dir, "page"))
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", op, err, bytes.TrimSpace(stderr.Bytes()))
	}

	// pdftoppm zero-pads page numbers to a common width, so names sort in
	// page order.
	files, err := filepath.Glob(filepath.Join(dir, "page-*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sort.Strings(files)

	pages := make([][]byte, 0, len(files))
	for _, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		pages = append(pages, data)
	}
	return pages, nil
}
