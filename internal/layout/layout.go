// Package layout maps frame slot geometry from design coordinates onto an
// actual render size.
package layout

import (
	"image"
	"math"

	"github.com/lehigh-university-libraries/photobooth/internal/frames"
)

// Placement is a slot scaled to a render size. Rotate is carried over
// unscaled, in degrees.
type Placement struct {
	Index  int
	Top    float64
	Left   float64
	Width  float64
	Height float64
	Rotate float64
}

// ScaleFactor is the single uniform scalar between design and render space.
func ScaleFactor(renderWidth float64) float64 {
	return renderWidth / frames.DesignWidth
}

// RenderHeight keeps the design aspect ratio for a given render width.
func RenderHeight(renderWidth float64) float64 {
	return renderWidth * frames.DesignHeight / frames.DesignWidth
}

// Place scales every slot of t, in slot order, to renderWidth.
func Place(t frames.FrameTemplate, renderWidth float64) []Placement {
	k := ScaleFactor(renderWidth)
	out := make([]Placement, len(t.Slots))
	for i, s := range t.Slots {
		out[i] = Placement{
			Index:  i,
			Top:    s.Top * k,
			Left:   s.Left * k,
			Width:  s.Width * k,
			Height: s.Height * k,
			Rotate: s.Rotate,
		}
	}
	return out
}

// Rect rounds the placement to whole pixels.
func (p Placement) Rect() image.Rectangle {
	x0 := int(math.Round(p.Left))
	y0 := int(math.Round(p.Top))
	return image.Rect(x0, y0, x0+int(math.Round(p.Width)), y0+int(math.Round(p.Height)))
}

// PhotoIndex picks the session photo for slot i out of n captured photos.
// Slots past the end of a short session reuse the first photo.
func PhotoIndex(i, n int) int {
	if i < n {
		return i
	}
	return 0
}
