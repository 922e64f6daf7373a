package studio

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"mygizmo/internal/models"
)

// Resize scales img to the target box. Zero on both axes is a no-op.
// With keepAspect the image fits inside the box and is never enlarged;
// otherwise it is stretched to exactly w x h, a zero axis keeping its
// current size.
func Resize(img image.Image, w, h int, keepAspect bool) *image.NRGBA {
	if w <= 0 && h <= 0 {
		return imaging.Clone(img)
	}
	b := img.Bounds()
	if w <= 0 {
		w = b.Dx()
	}
	if h <= 0 {
		h = b.Dy()
	}
	if keepAspect {
		return imaging.Fit(img, w, h, imaging.Lanczos)
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// margin keeps watermarks max(10px, 2% of the shorter side) off the edges.
func margin(w, h int) int {
	return max(10, int(float64(min(w, h))*0.02))
}

// placement returns the top-left corner of a w x h mark on a baseW x baseH
// image.
func placement(pos models.Position, baseW, baseH, w, h int) image.Point {
	m := margin(baseW, baseH)
	switch pos {
	case models.BottomLeft:
		return image.Pt(m, baseH-h-m)
	case models.TopLeft:
		return image.Pt(m, m)
	case models.TopRight:
		return image.Pt(baseW-w-m, m)
	case models.Center:
		return image.Pt((baseW-w)/2, (baseH-h)/2)
	default:
		return image.Pt(baseW-w-m, baseH-h-m)
	}
}

// glyphCacheEntries sizes the face's mask cache. Each entry holds a full
// glyph box, so the default of 512 grows to gigabytes at large sizes.
const glyphCacheEntries = 16

// ApplyTextWatermark draws white text at pos. opacity in [0,1] is the alpha
// of the text; size is in points at 72 DPI. Text running off the image is
// clipped.
func ApplyTextWatermark(img image.Image, fnt *truetype.Font, text string, pos models.Position, opacity float64, size int) *image.NRGBA {
	base := imaging.Clone(img)
	if text == "" || fnt == nil || size <= 0 {
		return base
	}

	face := truetype.NewFace(fnt, &truetype.Options{
		Size:              float64(min(size, models.MaxTextSize)),
		DPI:               72,
		Hinting:           font.HintingFull,
		GlyphCacheEntries: glyphCacheEntries,
	})
	defer face.Close()

	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	w := font.MeasureString(face, text).Ceil()
	h := ascent + metrics.Descent.Ceil()
	if w <= 0 || h <= 0 {
		return base
	}

	b := base.Bounds()
	at := placement(pos, b.Dx(), b.Dy(), w, h)
	visible := image.Rect(at.X, at.Y, at.X+w, at.Y+h).Intersect(b)
	if visible.Empty() {
		return base
	}

	layer := image.NewNRGBA(image.Rect(0, 0, visible.Dx(), visible.Dy()))
	d := &font.Drawer{
		Dst:  layer,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(at.X-visible.Min.X, at.Y-visible.Min.Y+ascent),
	}
	d.DrawString(text)

	return imaging.Overlay(base, layer, visible.Min, opacity)
}

// ApplyImageWatermark scales wm to scale x the base width, keeping its
// aspect ratio, and blends it at pos with opacity. scale is capped at 1 and
// a mark taller than the base is shrunk to its height. A nil wm is a no-op.
func ApplyImageWatermark(img, wm image.Image, pos models.Position, opacity, scale float64) *image.NRGBA {
	base := imaging.Clone(img)
	if wm == nil || wm.Bounds().Empty() {
		return base
	}

	b := base.Bounds()
	wb := wm.Bounds()
	scale = min(scale, models.MaxImageScale)
	targetW := max(1, int(float64(b.Dx())*scale))
	ratio := float64(targetW) / float64(wb.Dx())
	targetH := max(1, int(float64(wb.Dy())*ratio))
	if targetH > b.Dy() {
		targetH = b.Dy()
		targetW = max(1, int(float64(wb.Dx())*float64(targetH)/float64(wb.Dy())))
	}
	resized := imaging.Resize(wm, targetW, targetH, imaging.Lanczos)

	return imaging.Overlay(base, resized, placement(pos, b.Dx(), b.Dy(), targetW, targetH), opacity)
}
