// Package convert turns image sets into PDFs and PDFs back into JPEG pages.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog/log"

	"mygizmo/internal/studio"
)

const (
	JPGToPDF = "jpg_to_pdf"
	PDFToJPG = "pdf_to_jpg"

	PDFDownloadName = "converted.pdf"
	ZipDownloadName = "converted_images.zip"
)

var (
	ErrNoValidImages = errors.New("no valid images found")
	ErrSinglePDF     = errors.New("upload exactly one PDF")
)

// ImagesToPDF puts every decodable upload on its own page sized to the
// image. Undecodable uploads are skipped.
func ImagesToPDF(uploads []studio.Upload) ([]byte, error) {
	const op = "convert.ImagesToPDF"

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(true)
	pages := 0
	for i, u := range uploads {
		img, err := decodeUpload(u)
		if err != nil {
			log.Info().Err(err).Str("file", u.Filename).Msg("skipping non-image file")
			continue
		}

		var raster bytes.Buffer
		if err := imaging.Encode(&raster, studio.Flatten(img), imaging.PNG); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		b := img.Bounds()
		w, h := float64(b.Dx()), float64(b.Dy())
		name := fmt.Sprintf("page%d", i)
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(name, opts, &raster)
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
		pdf.ImageOptions(name, 0, 0, w, h, false, opts, 0, "")
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		pages++
	}
	if pages == 0 {
		return nil, ErrNoValidImages
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out.Bytes(), nil
}

func decodeUpload(u studio.Upload) (image.Image, error) {
	if u.Open == nil {
		return nil, errors.New("empty upload")
	}
	rc, err := u.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return studio.Decode(rc)
}

// PDFToJPEGs rasterizes every page and zips them as page_<n>.jpg.
func PDFToJPEGs(ctx context.Context, r Rasterizer, pdf io.Reader) ([]byte, error) {
	const op = "convert.PDFToJPEGs"

	pages, err := r.Rasterize(ctx, pdf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%s: document has no pages", op)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, page := range pages {
		name := fmt.Sprintf("page_%d.jpg", i+1)
		if err := studio.AddZipEntry(zw, name, bytes.NewReader(page)); err != nil {
			zw.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return buf.Bytes(), nil
}
