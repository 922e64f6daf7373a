// Package bgremove strips image backgrounds through a rembg-compatible
// HTTP service.
package bgremove

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

var ErrNotConfigured = errors.New("background remover is not configured")

const maxResponseBytes = 64 << 20

type Remover interface {
	Remove(ctx context.Context, image []byte) ([]byte, error)
}

type HTTPRemover struct {
	endpoint string
	client   *http.Client
}

// NewHTTPRemover posts to endpoint. A nil client gets a two minute
// timeout.
func NewHTTPRemover(endpoint string, client *http.Client) *HTTPRemover {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &HTTPRemover{endpoint: endpoint, client: client}
}

// Remove returns the image as a PNG with its background made transparent.
func (r *HTTPRemover) Remove(ctx context.Context, image []byte) ([]byte, error) {
	const op = "bgremove.HTTPRemover.Remove"

	if r.endpoint == "" {
		return nil, ErrNotConfigured
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "image")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: remover returned %s: %s", op, resp.Status, bytes.TrimSpace(out))
	}
	return out, nil
}
