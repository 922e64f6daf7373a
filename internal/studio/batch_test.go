package studio

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"mygizmo/internal/models"
)

func newTestProcessor(t *testing.T) (*Processor, *models.Config) {
	t.Helper()
	cfg := &models.Config{
		UploadDir:    t.TempDir(),
		ProcessedDir: t.TempDir(),
	}
	p, err := NewProcessor(cfg)
	require.NoError(t, err)
	return p, cfg
}

func pngBytes(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(w, h, c)))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(w, h, color.NRGBA{G: 200, A: 255}), nil))
	return buf.Bytes()
}

func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "leftover files in %s", dir)
}

func TestProcess_ZipWithOneRejectedFile(t *testing.T) {
	p, cfg := newTestProcessor(t)
	uploads := []Upload{
		BytesUpload("one.png", pngBytes(t, 64, 48, color.NRGBA{R: 255, A: 255})),
		BytesUpload("two.jpg", jpegBytes(t, 80, 60)),
		BytesUpload("notes.txt", []byte("not an image")),
		BytesUpload("three.png", pngBytes(t, 30, 30, color.NRGBA{B: 255, A: 255})),
	}
	params := models.DefaultParameters()
	params.Format = models.FormatPNG
	params.WatermarkText = "MyGizmo"

	artifact, err := p.Process(context.Background(), uploads, params, nil)
	require.NoError(t, err)
	defer artifact.Release()

	require.Equal(t, MimeZip, artifact.MimeType)
	require.True(t, strings.HasPrefix(artifact.DownloadName, "MyGizmo_Images_"))
	require.True(t, strings.HasSuffix(artifact.DownloadName, ".zip"))
	require.Equal(t, 3, artifact.Processed)
	require.Equal(t, []string{"notes.txt: unsupported type"}, artifact.Errors)

	data, ok := artifact.Source.Bytes()
	require.True(t, ok)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 3)
	for _, f := range zr.File {
		require.Equal(t, zip.Deflate, f.Method)
		require.True(t, strings.HasSuffix(f.Name, "_out.png"), f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		_, err = png.Decode(rc)
		rc.Close()
		require.NoError(t, err)
	}

	requireEmptyDir(t, cfg.UploadDir)
	requireEmptyDir(t, cfg.ProcessedDir)
}

func TestProcess_PDFPerImage(t *testing.T) {
	p, cfg := newTestProcessor(t)
	uploads := []Upload{
		BytesUpload("wide.png", pngBytes(t, 300, 100, color.NRGBA{R: 255, A: 128})),
		BytesUpload("tall.jpg", jpegBytes(t, 100, 300)),
		BytesUpload("square.png", pngBytes(t, 50, 50, color.NRGBA{A: 255})),
	}
	params := models.DefaultParameters()
	params.Format = models.FormatPDF

	artifact, err := p.Process(context.Background(), uploads, params, nil)
	require.NoError(t, err)
	require.Equal(t, MimePDF, artifact.MimeType)
	require.Equal(t, "MyGizmo_Converted.pdf", artifact.DownloadName)

	path, ok := artifact.Source.Path()
	require.True(t, ok)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	pages := bytes.Count(data, []byte("/Type /Page")) - bytes.Count(data, []byte("/Type /Pages"))
	require.Equal(t, 3, pages)

	requireEmptyDir(t, cfg.UploadDir)

	// Only the artifact remains until it is released.
	entries, err := os.ReadDir(cfg.ProcessedDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	artifact.Release()
	requireEmptyDir(t, cfg.ProcessedDir)
}

func TestProcess_NothingProcessed(t *testing.T) {
	p, cfg := newTestProcessor(t)
	uploads := []Upload{
		BytesUpload("a.txt", []byte("x")),
		BytesUpload("broken.png", []byte("definitely not a png")),
		BytesUpload("", nil),
	}
	wm := BytesUpload("logo.png", pngBytes(t, 10, 10, color.NRGBA{A: 255}))

	_, err := p.Process(context.Background(), uploads, models.DefaultParameters(), &wm)
	require.ErrorIs(t, err, ErrNothingProcessed)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	require.Len(t, batchErr.Errors, 3)
	require.Equal(t, "a.txt: unsupported type", batchErr.Errors[0])
	require.True(t, strings.HasPrefix(batchErr.Errors[1], "broken.png: processing failed"))
	require.Equal(t, "Unknown file: unsupported type", batchErr.Errors[2])

	requireEmptyDir(t, cfg.UploadDir)
	requireEmptyDir(t, cfg.ProcessedDir)
}

func TestProcess_BrokenWatermarkFailsEveryFile(t *testing.T) {
	p, cfg := newTestProcessor(t)
	uploads := []Upload{
		BytesUpload("one.png", pngBytes(t, 20, 20, color.NRGBA{A: 255})),
		BytesUpload("two.png", pngBytes(t, 20, 20, color.NRGBA{A: 255})),
	}
	wm := BytesUpload("logo.png", []byte("garbage"))

	_, err := p.Process(context.Background(), uploads, models.DefaultParameters(), &wm)
	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	require.Len(t, batchErr.Errors, 2)
	require.Contains(t, batchErr.Errors[0], ErrWatermarkLoad.Error())

	requireEmptyDir(t, cfg.UploadDir)
}

func TestProcess_ResizeAndWatermarkImage(t *testing.T) {
	p, _ := newTestProcessor(t)
	uploads := []Upload{BytesUpload("big.png", pngBytes(t, 400, 200, color.NRGBA{A: 255}))}
	wm := BytesUpload("logo.png", pngBytes(t, 20, 10, color.NRGBA{R: 255, A: 255}))

	params := models.DefaultParameters()
	params.Width, params.Height, params.KeepAspect = 100, 100, true
	params.Format = models.FormatPNG
	params.Position = models.TopLeft
	params.ImageOpacity = 1
	params.ImageScale = 0.5

	artifact, err := p.Process(context.Background(), uploads, params, &wm)
	require.NoError(t, err)
	defer artifact.Release()

	data, _ := artifact.Source.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	img, err := png.Decode(rc)
	require.NoError(t, err)

	require.Equal(t, image.Rect(0, 0, 100, 50), img.Bounds())
	// 50x25 watermark at the 10px margin.
	r, g, b, _ := img.At(20, 20).RGBA()
	require.Equal(t, uint32(0xffff), r)
	require.Zero(t, g)
	require.Zero(t, b)
	r, _, _, _ = img.At(70, 40).RGBA()
	require.Zero(t, r)
}

func TestProcess_JPEGOutputHasNoAlpha(t *testing.T) {
	p, _ := newTestProcessor(t)
	uploads := []Upload{BytesUpload("alpha.png", pngBytes(t, 16, 16, color.NRGBA{R: 80, A: 10}))}
	params := models.DefaultParameters()
	params.Format = models.FormatJPEG
	params.Quality = 75

	artifact, err := p.Process(context.Background(), uploads, params, nil)
	require.NoError(t, err)
	defer artifact.Release()

	data, _ := artifact.Source.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(zr.File[0].Name, "_out.jpg"))
	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	img, err := jpeg.Decode(rc)
	require.NoError(t, err)
	_, isYCbCr := img.(*image.YCbCr)
	require.True(t, isYCbCr)
}
