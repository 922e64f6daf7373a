package studio

import (
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"mygizmo/internal/models"
)

var allowedExt = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "webp": true, "bmp": true, "gif": true,
}

// AllowedFile reports whether name has one of the accepted image extensions.
func AllowedFile(name string) bool {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	return ext != "" && allowedExt[strings.ToLower(ext)]
}

// Decode reads any registered image format into a 4-channel image.
func Decode(r io.Reader) (*image.NRGBA, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, err
	}
	return imaging.Clone(img), nil
}

// Flatten drops the alpha channel, keeping the colour values as they are.
func Flatten(img image.Image) *image.RGBA {
	src := imaging.Clone(img)
	b := src.Bounds()
	dst := image.NewRGBA(b)
	for i := 0; i < len(src.Pix); i += 4 {
		dst.Pix[i+0] = src.Pix[i+0]
		dst.Pix[i+1] = src.Pix[i+1]
		dst.Pix[i+2] = src.Pix[i+2]
		dst.Pix[i+3] = 0xff
	}
	return dst
}

// Encode writes img in format. JPEG drops alpha; PDF pages are staged as
// opaque PNG rasters; PNG and WEBP keep alpha.
func Encode(w io.Writer, img image.Image, format models.OutputFormat, quality int) error {
	switch format {
	case models.FormatJPEG:
		return imaging.Encode(w, Flatten(img), imaging.JPEG, imaging.JPEGQuality(quality))
	case models.FormatPDF:
		return imaging.Encode(w, Flatten(img), imaging.PNG)
	case models.FormatPNG:
		return imaging.Encode(w, img, imaging.PNG)
	case models.FormatWEBP:
		return nativewebp.Encode(w, img, nil)
	default:
		return fmt.Errorf("studio.Encode: unsupported format %q", format)
	}
}

// stagedExt is the extension of a staged file for format.
func stagedExt(format models.OutputFormat) string {
	if format == models.FormatPDF {
		return "png"
	}
	return format.Ext()
}
