package studio

import (
	"fmt"
	"os"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

// FontSource is one candidate for the watermark font.
type FontSource interface {
	Name() string
	Load() (*truetype.Font, error)
}

// FileFont reads a TrueType file from disk.
type FileFont string

func (f FileFont) Name() string { return string(f) }

func (f FileFont) Load() (*truetype.Font, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return nil, err
	}
	return truetype.Parse(data)
}

// EmbeddedFont is the Go Regular font compiled into the binary.
type EmbeddedFont struct{}

func (EmbeddedFont) Name() string { return "goregular" }

func (EmbeddedFont) Load() (*truetype.Font, error) {
	return truetype.Parse(goregular.TTF)
}

// systemFonts are tried after the configured paths.
var systemFonts = []string{
	"arial.ttf",
	"/usr/share/fonts/truetype/msttcorefonts/Arial.ttf",
	"/Library/Fonts/Arial.ttf",
	"C:\\Windows\\Fonts\\arial.ttf",
	"DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
}

// FontCandidates lists configured paths, then system fonts, then the
// embedded fallback.
func FontCandidates(paths []string) []FontSource {
	out := make([]FontSource, 0, len(paths)+len(systemFonts)+1)
	for _, p := range paths {
		out = append(out, FileFont(p))
	}
	for _, p := range systemFonts {
		out = append(out, FileFont(p))
	}
	return append(out, EmbeddedFont{})
}

// LoadFirstFont returns the first candidate that loads.
func LoadFirstFont(candidates []FontSource) (*truetype.Font, string, error) {
	for _, c := range candidates {
		f, err := c.Load()
		if err == nil {
			return f, c.Name(), nil
		}
	}
	return nil, "", fmt.Errorf("studio.LoadFirstFont: none of %d font candidates loaded", len(candidates))
}
