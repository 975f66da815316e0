// Package compose rasterizes a frame template, a session's photos and a
// filter preset into a single strip image.
package compose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"path/filepath"
	"sync"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"golang.org/x/image/draw"

	"github.com/lehigh-university-libraries/photobooth/internal/filters"
	"github.com/lehigh-university-libraries/photobooth/internal/frames"
	"github.com/lehigh-university-libraries/photobooth/internal/layout"
	"github.com/lehigh-university-libraries/photobooth/internal/models"
)

// DefaultWidth renders the 340px preview at 3x pixel density.
const DefaultWidth = 1020

// Background fills the canvas behind the slots.
var Background = color.RGBA{R: 0x12, G: 0x00, B: 0x00, A: 0xff}

var ErrNoPhotos = errors.New("no photos to compose")

type Compositor struct {
	assetsDir string
	width     int

	mu      sync.Mutex
	artwork map[string]image.Image
}

// New returns a compositor reading frame artwork from assetsDir.
func New(assetsDir string, width int) *Compositor {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Compositor{
		assetsDir: assetsDir,
		width:     width,
		artwork:   make(map[string]image.Image),
	}
}

func (c *Compositor) Width() int { return c.width }

// Render draws every slot of t. Slot i shows photos[i], or photos[0] when
// the session is short.
func (c *Compositor) Render(ctx context.Context, t frames.FrameTemplate, photos []models.Photo, preset filters.Preset) (image.Image, error) {
	if len(photos) == 0 {
		return nil, ErrNoPhotos
	}

	w := c.width
	h := int(math.Round(layout.RenderHeight(float64(w))))
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: Background}, image.Point{}, draw.Src)

	decoded := make([]image.Image, len(photos))
	for _, p := range layout.Place(t, float64(w)) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		idx := layout.PhotoIndex(p.Index, len(photos))
		if decoded[idx] == nil {
			img, err := photos[idx].Image()
			if err != nil {
				return nil, fmt.Errorf("failed to decode photo %d: %w", idx, err)
			}
			decoded[idx] = img
		}

		rect := p.Rect()
		if rect.Empty() {
			continue
		}
		drawSlot(canvas, rect, p.Rotate, filters.Apply(coverFit(decoded[idx], rect.Dx(), rect.Dy()), preset))
	}

	if art := c.loadArtwork(t, w, h); art != nil {
		draw.Draw(canvas, canvas.Bounds(), art, image.Point{}, draw.Over)
	}

	return canvas, nil
}

// coverFit scales img to fill w x h and crops the centre.
func coverFit(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	scale := math.Max(float64(w)/float64(b.Dx()), float64(h)/float64(b.Dy()))
	rw := max(w, int(math.Ceil(float64(b.Dx())*scale)))
	rh := max(h, int(math.Ceil(float64(b.Dy())*scale)))

	resized := transform.Resize(img, rw, rh, transform.Linear)
	x0 := (rw - w) / 2
	y0 := (rh - h) / 2
	return transform.Crop(resized, image.Rect(x0, y0, x0+w, y0+h))
}

// drawSlot rotates tile clockwise by deg around the centre of rect.
func drawSlot(canvas draw.Image, rect image.Rectangle, deg float64, tile image.Image) {
	if deg != 0 {
		tile = transform.Rotate(tile, deg, &transform.RotationOptions{ResizeBounds: true})
	}
	tb := tile.Bounds()
	cx := rect.Min.X + rect.Dx()/2
	cy := rect.Min.Y + rect.Dy()/2
	dst := image.Rect(cx-tb.Dx()/2, cy-tb.Dy()/2, cx-tb.Dx()/2+tb.Dx(), cy-tb.Dy()/2+tb.Dy())
	draw.Draw(canvas, dst, tile, tb.Min, draw.Over)
}

func (c *Compositor) loadArtwork(t frames.FrameTemplate, w, h int) image.Image {
	if t.Artwork == "" {
		return nil
	}
	path := filepath.Join(c.assetsDir, t.Artwork)
	key := fmt.Sprintf("%s@%dx%d", path, w, h)

	c.mu.Lock()
	defer c.mu.Unlock()
	if art, ok := c.artwork[key]; ok {
		return art
	}

	src, err := imgio.Open(path)
	if err != nil {
		slog.Warn("Frame artwork unavailable, rendering without it", "frame_id", t.ID, "path", path, "error", err)
		return nil
	}
	art := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(art, art.Bounds(), src, src.Bounds(), draw.Src, nil)
	c.artwork[key] = art
	return art
}

// EncodePNG serializes a rendered strip.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imgio.PNGEncoder()(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
