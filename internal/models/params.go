package models

import (
	"fmt"
	"strings"
)

type Position string

const (
	BottomRight Position = "bottom-right"
	BottomLeft  Position = "bottom-left"
	TopLeft     Position = "top-left"
	TopRight    Position = "top-right"
	Center      Position = "center"
)

// ParsePosition maps unknown values to bottom-right.
func ParsePosition(s string) Position {
	switch p := Position(strings.ToLower(strings.TrimSpace(s))); p {
	case BottomRight, BottomLeft, TopLeft, TopRight, Center:
		return p
	default:
		return BottomRight
	}
}

type OutputFormat string

const (
	FormatJPEG OutputFormat = "JPEG"
	FormatPNG  OutputFormat = "PNG"
	FormatWEBP OutputFormat = "WEBP"
	FormatPDF  OutputFormat = "PDF"
)

var formatExt = map[OutputFormat]string{
	FormatJPEG: "jpg",
	FormatPNG:  "png",
	FormatWEBP: "webp",
	FormatPDF:  "pdf",
}

// ParseFormat maps unknown values to JPEG.
func ParseFormat(s string) OutputFormat {
	f := OutputFormat(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := formatExt[f]; !ok {
		return FormatJPEG
	}
	return f
}

func (f OutputFormat) Ext() string {
	if ext, ok := formatExt[f]; ok {
		return ext
	}
	return "jpg"
}

// Upper bounds of the studio form. They keep one request from sizing
// buffers far beyond any real image.
const (
	MaxDimension  = 10000
	MaxTextSize   = 500
	MaxImageScale = 1.0
)

// ProcessingParameters is the per-request setting of the image studio.
// It is never persisted.
type ProcessingParameters struct {
	Width      int
	Height     int
	KeepAspect bool

	WatermarkText string
	Position      Position
	TextOpacity   float64
	TextSize      int

	ImageOpacity float64
	ImageScale   float64

	Format  OutputFormat
	Quality int
}

// DefaultParameters mirrors the studio form defaults.
func DefaultParameters() ProcessingParameters {
	return ProcessingParameters{
		Position:     BottomRight,
		TextOpacity:  0.5,
		TextSize:     24,
		ImageOpacity: 0.5,
		ImageScale:   0.2,
		Format:       FormatJPEG,
		Quality:      90,
	}
}

// Normalize clamps every field into its valid range.
func (p *ProcessingParameters) Normalize() {
	p.Width = max(p.Width, 0)
	p.Height = max(p.Height, 0)
	p.WatermarkText = strings.TrimSpace(p.WatermarkText)
	p.Position = ParsePosition(string(p.Position))
	p.Format = ParseFormat(string(p.Format))
	p.Quality = min(max(p.Quality, 1), 100)
	p.TextOpacity = clamp01(p.TextOpacity)
	p.ImageOpacity = clamp01(p.ImageOpacity)
	p.Width = min(p.Width, MaxDimension)
	p.Height = min(p.Height, MaxDimension)
	if p.TextSize <= 0 {
		p.TextSize = 24
	}
	p.TextSize = min(p.TextSize, MaxTextSize)
	if p.ImageScale <= 0 {
		p.ImageScale = 0.2
	}
	p.ImageScale = min(p.ImageScale, MaxImageScale)
}

// Validate reports the first field outside its accepted range.
func (p ProcessingParameters) Validate() error {
	switch {
	case p.Width < 0 || p.Width > MaxDimension:
		return fmt.Errorf("width must be between 0 and %d", MaxDimension)
	case p.Height < 0 || p.Height > MaxDimension:
		return fmt.Errorf("height must be between 0 and %d", MaxDimension)
	case p.TextSize < 1 || p.TextSize > MaxTextSize:
		return fmt.Errorf("text_size must be between 1 and %d", MaxTextSize)
	case p.ImageScale <= 0 || p.ImageScale > MaxImageScale:
		return fmt.Errorf("image_scale must be above 0 and at most %g", MaxImageScale)
	case p.Quality < 1 || p.Quality > 100:
		return fmt.Errorf("quality must be between 1 and 100")
	case p.TextOpacity < 0 || p.TextOpacity > 1:
		return fmt.Errorf("text_opacity must be between 0 and 1")
	case p.ImageOpacity < 0 || p.ImageOpacity > 1:
		return fmt.Errorf("img_opacity must be between 0 and 1")
	}
	return nil
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
