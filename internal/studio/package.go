package studio

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog/log"

	"mygizmo/internal/models"
	"mygizmo/internal/naming"
	"mygizmo/internal/scratch"
)

const (
	MimePDF = "application/pdf"
	MimeZip = "application/zip"
)

// Artifact is the downloadable result of a request.
type Artifact struct {
	Source       models.FileSource
	DownloadName string
	MimeType     string
	Processed    int
	Errors       []string

	files scratch.Set
}

// Release removes any temp file backing the artifact.
func (a *Artifact) Release() {
	if a != nil {
		a.files.Release()
	}
}

func (p *Processor) pack(staged []string, format models.OutputFormat) (*Artifact, error) {
	if format == models.FormatPDF {
		a := &Artifact{DownloadName: "MyGizmo_Converted.pdf", MimeType: MimePDF}
		out := a.files.Track(filepath.Join(p.processedDir, "batch_"+naming.Token()+".pdf"))
		if err := WritePDF(out, staged); err != nil {
			a.Release()
			return nil, fmt.Errorf("PDF generation failed: %w", err)
		}
		a.Source = models.PathSource(out)
		return a, nil
	}

	data, err := ZipFiles(staged)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Source:       models.BytesSource(data),
		DownloadName: "MyGizmo_Images_" + naming.Token() + ".zip",
		MimeType:     MimeZip,
	}, nil
}

// WritePDF lays out one A4 page per image, centred and scaled to fit with
// its aspect ratio kept. Images that cannot be read are skipped.
func WritePDF(out string, images []string) error {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(true)
	pageW, pageH := pdf.GetPageSize()

	for _, path := range images {
		w, h, imgType, err := imageDims(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipping page")
			continue
		}
		ratio := min(pageW/float64(w), pageH/float64(h))
		drawW, drawH := float64(w)*ratio, float64(h)*ratio

		pdf.AddPage()
		pdf.ImageOptions(path, (pageW-drawW)/2, (pageH-drawH)/2, drawW, drawH, false,
			fpdf.ImageOptions{ImageType: imgType}, 0, "")
		if err := pdf.Error(); err != nil {
			return err
		}
	}
	return pdf.OutputFileAndClose(out)
}

func imageDims(path string) (w, h int, imgType string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, "", err
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, "", err
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return 0, 0, "", fmt.Errorf("empty image %s", path)
	}
	switch format {
	case "png":
		imgType = "PNG"
	case "jpeg":
		imgType = "JPG"
	default:
		return 0, 0, "", fmt.Errorf("unsupported page image %q", format)
	}
	return cfg.Width, cfg.Height, imgType, nil
}

// ZipFiles archives files with deflate under their base names.
func ZipFiles(files []string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, path := range files {
		if err := addZipFile(zw, path); err != nil {
			zw.Close()
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addZipFile(zw *zip.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return AddZipEntry(zw, filepath.Base(path), f)
}

// AddZipEntry writes one deflated entry.
func AddZipEntry(zw *zip.Writer, name string, r io.Reader) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, r)
	return err
}
