// Package studio implements the image studio: per-file transforms, the
// batch run over an upload set and packaging of the results.
package studio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/golang/freetype/truetype"
	"github.com/rs/zerolog/log"

	"mygizmo/internal/metrics"
	"mygizmo/internal/models"
	"mygizmo/internal/naming"
	"mygizmo/internal/scratch"
)

var (
	ErrNothingProcessed = errors.New("no images were processed")
	ErrWatermarkLoad    = errors.New("watermark image load failed")
)

// BatchError is returned when no file of a batch survived.
type BatchError struct {
	Errors []string
}

func (e *BatchError) Error() string {
	if len(e.Errors) == 0 {
		return ErrNothingProcessed.Error()
	}
	return ErrNothingProcessed.Error() + ": " + strings.Join(e.Errors, "; ")
}

func (e *BatchError) Is(target error) bool { return target == ErrNothingProcessed }

// Upload is one incoming file.
type Upload struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// BytesUpload wraps an in-memory file.
func BytesUpload(name string, data []byte) Upload {
	return Upload{
		Filename: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

type Processor struct {
	uploadDir    string
	processedDir string
	font         *truetype.Font
}

func NewProcessor(cfg *models.Config) (*Processor, error) {
	const op = "studio.NewProcessor"
	for _, dir := range []string{cfg.UploadDir, cfg.ProcessedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	fnt, name, err := LoadFirstFont(FontCandidates(cfg.FontPaths))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Debug().Str("font", name).Msg("watermark font loaded")

	return &Processor{uploadDir: cfg.UploadDir, processedDir: cfg.ProcessedDir, font: fnt}, nil
}

// watermark is the decoded watermark image, or the reason it could not be
// decoded.
type watermark struct {
	img image.Image
	err error
}

// loadWatermark saves wm into the upload area and decodes it. A missing or
// disallowed upload yields no watermark.
func (p *Processor) loadWatermark(wm *Upload, assets *scratch.Set) watermark {
	if wm == nil || wm.Filename == "" || !AllowedFile(wm.Filename) {
		return watermark{}
	}
	path := assets.Path(p.uploadDir, "wm_"+naming.SafeFilename(wm.Filename, "watermark"))
	if err := saveUpload(*wm, path); err != nil {
		log.Warn().Err(err).Msg("watermark save failed")
		return watermark{}
	}

	f, err := os.Open(path)
	if err != nil {
		return watermark{err: fmt.Errorf("%w: %v", ErrWatermarkLoad, err)}
	}
	defer f.Close()
	img, err := Decode(f)
	if err != nil {
		return watermark{err: fmt.Errorf("%w: %v", ErrWatermarkLoad, err)}
	}
	return watermark{img: img}
}

// runBatch processes uploads in order. Outputs are tracked in staged; the
// returned paths are in input order. errs holds one line per failed file.
func (p *Processor) runBatch(uploads []Upload, params models.ProcessingParameters, wm watermark, staged *scratch.Set) (paths, errs []string) {
	for _, u := range uploads {
		if !AllowedFile(u.Filename) {
			name := u.Filename
			if name == "" {
				name = "Unknown file"
			}
			errs = append(errs, name+": unsupported type")
			continue
		}

		safe := naming.SafeFilename(u.Filename, "upload")
		out, err := p.processOne(u, safe, params, wm, staged)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: processing failed (%v)", safe, err))
			continue
		}
		paths = append(paths, out)
	}
	return paths, errs
}

func (p *Processor) processOne(u Upload, safe string, params models.ProcessingParameters, wm watermark, staged *scratch.Set) (string, error) {
	var transient scratch.Set
	defer transient.Release()

	in := transient.Path(p.uploadDir, safe)
	if err := saveUpload(u, in); err != nil {
		return "", err
	}

	img, err := decodeFile(in)
	if err != nil {
		return "", err
	}

	if params.Width > 0 || params.Height > 0 {
		img = Resize(img, params.Width, params.Height, params.KeepAspect)
	}
	if wm.err != nil {
		return "", wm.err
	}
	if wm.img != nil {
		img = ApplyImageWatermark(img, wm.img, params.Position, params.ImageOpacity, params.ImageScale)
	}
	if params.WatermarkText != "" {
		img = ApplyTextWatermark(img, p.font, params.WatermarkText, params.Position, params.TextOpacity, params.TextSize)
	}

	out := staged.Path(p.processedDir, "out."+stagedExt(params.Format))
	if err := encodeFile(out, img, params.Format, params.Quality); err != nil {
		scratch.Remove(out)
		return "", err
	}
	return out, nil
}

func saveUpload(u Upload, path string) error {
	if u.Open == nil {
		return errors.New("empty upload")
	}
	src, err := u.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func decodeFile(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

func encodeFile(path string, img image.Image, format models.OutputFormat, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, img, format, quality); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Process runs the studio pipeline over uploads and packages the result.
// When nothing survives it returns a *BatchError. The caller must call
// Artifact.Release once the artifact has been delivered.
func (p *Processor) Process(ctx context.Context, uploads []Upload, params models.ProcessingParameters, wm *Upload) (*Artifact, error) {
	const op = "studio.Process"
	params.Normalize()

	var assets scratch.Set
	defer assets.Release()

	mark := p.loadWatermark(wm, &assets)
	staged, errs := p.runBatch(uploads, params, mark, &assets)
	metrics.StudioImages.WithLabelValues(metrics.Processed).Add(float64(len(staged)))
	metrics.StudioImages.WithLabelValues(metrics.Failed).Add(float64(len(errs)))
	if len(staged) == 0 {
		return nil, &BatchError{Errors: errs}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	artifact, err := p.pack(staged, params.Format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	artifact.Processed = len(staged)
	artifact.Errors = errs
	return artifact, nil
}
