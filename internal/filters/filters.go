// Package filters defines the cosmetic filter presets applied uniformly to
// every slot of a composed strip.
package filters

import (
	"image"
	"strings"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/noise"
)

// OpKind names a single image adjustment.
type OpKind string

const (
	OpSepia      OpKind = "sepia"
	OpGrayscale  OpKind = "grayscale"
	OpSaturate   OpKind = "saturate"
	OpContrast   OpKind = "contrast"
	OpBrightness OpKind = "brightness"
	OpGrain      OpKind = "grain"
)

// Op is one adjustment. Amount follows CSS filter semantics: for saturate,
// contrast and brightness 1 is the identity; for sepia, grayscale and grain
// it is the mix strength between 0 and 1.
type Op struct {
	Kind   OpKind  `json:"kind"`
	Amount float64 `json:"amount"`
}

// Preset is a named sequence of adjustments.
type Preset struct {
	Name string `json:"name"`
	Ops  []Op   `json:"ops"`
}

// Original is the identity preset.
var Original = Preset{Name: "Original"}

var presets = []Preset{
	Original,
	{Name: "Warm Film", Ops: []Op{{OpSepia, 0.3}, {OpSaturate, 1.2}, {OpContrast, 1.1}}},
	{Name: "Muted Color", Ops: []Op{{OpSaturate, 0.5}, {OpContrast, 0.9}, {OpBrightness, 1.1}}},
	{Name: "Retro Matte", Ops: []Op{{OpContrast, 0.8}, {OpBrightness, 1.1}, {OpGrayscale, 0.2}}},
	{Name: "Film Noir", Ops: []Op{{OpGrayscale, 1}, {OpBrightness, 0.8}, {OpContrast, 1.2}}},
	{Name: "Soft Grain", Ops: []Op{{OpContrast, 1.1}, {OpBrightness, 1.05}, {OpGrain, 0.08}}},
}

// All returns the presets in display order.
func All() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// Lookup finds a preset by name, ignoring case. Unknown names resolve to
// Original.
func Lookup(name string) Preset {
	for _, p := range presets {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p
		}
	}
	return Original
}

// Apply runs every op of p over img and returns a new image with its origin
// at (0, 0).
func Apply(img image.Image, p Preset) image.Image {
	out := clone.AsRGBA(img)
	for _, op := range p.Ops {
		out = applyOp(out, op)
	}
	return out
}

func applyOp(img *image.RGBA, op Op) *image.RGBA {
	switch op.Kind {
	case OpSepia:
		return mix(img, effect.Sepia(img), op.Amount)
	case OpGrayscale:
		return mix(img, effect.Grayscale(img), op.Amount)
	case OpSaturate:
		return adjust.Saturation(img, op.Amount-1)
	case OpContrast:
		return adjust.Contrast(img, op.Amount-1)
	case OpBrightness:
		return adjust.Brightness(img, op.Amount-1)
	case OpGrain:
		b := img.Bounds()
		grain := noise.Generate(b.Dx(), b.Dy(), &noise.Options{Monochrome: true, NoiseFn: noise.Gaussian})
		return mix(img, blend.Overlay(img, grain), op.Amount)
	default:
		return img
	}
}

func mix(bg *image.RGBA, fg image.Image, amount float64) *image.RGBA {
	switch {
	case amount <= 0:
		return bg
	case amount >= 1:
		return clone.AsRGBA(fg)
	default:
		return blend.Opacity(bg, fg, amount)
	}
}
