// Package frames holds the catalog of frame templates a booth session can be
// captured into.
package frames

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Slot placements are authored against a fixed 1200x1800 design canvas.
const (
	DesignWidth  = 1200.0
	DesignHeight = 1800.0
)

//go:embed frames.yaml
var defaultCatalog []byte

// ErrInvalidTemplate is returned when a template fails validation at load time.
var ErrInvalidTemplate = errors.New("invalid frame template")

// Category is the print format a template is designed for.
type Category string

const (
	CategoryPhotostrip Category = "Photostrip"
	CategoryVertical   Category = "Vertical"
	Category4R         Category = "4R"
	CategoryStory      Category = "Story"
)

var categories = []Category{CategoryPhotostrip, CategoryVertical, Category4R, CategoryStory}

// Slot is one photo placement inside a template, in design coordinates.
// Rotate is in degrees, clockwise.
type Slot struct {
	Top    float64 `yaml:"top" json:"top"`
	Left   float64 `yaml:"left" json:"left"`
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
	Rotate float64 `yaml:"rotate" json:"rotate"`
}

// FrameTemplate is a named frame layout with fixed slot geometry and artwork.
type FrameTemplate struct {
	ID        int      `yaml:"id" json:"id"`
	Name      string   `yaml:"name" json:"name"`
	Category  Category `yaml:"category" json:"category"`
	Artwork   string   `yaml:"artwork" json:"artwork"`
	MaxPhotos int      `yaml:"max_photos" json:"max_photos"`
	Slots     []Slot   `yaml:"slots" json:"slots"`
}

type catalogFile struct {
	Frames []FrameTemplate `yaml:"frames"`
}

func (t FrameTemplate) clone() FrameTemplate {
	t.Slots = slices.Clone(t.Slots)
	return t
}

// Validate checks the invariants every template must hold.
func (t FrameTemplate) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: frame %d has no name", ErrInvalidTemplate, t.ID)
	}
	if !slices.Contains(categories, t.Category) {
		return fmt.Errorf("%w: frame %d has unknown category %q", ErrInvalidTemplate, t.ID, t.Category)
	}
	if t.MaxPhotos <= 0 {
		return fmt.Errorf("%w: frame %d must hold at least one photo", ErrInvalidTemplate, t.ID)
	}
	if len(t.Slots) != t.MaxPhotos {
		return fmt.Errorf("%w: frame %d has %d slots for %d photos", ErrInvalidTemplate, t.ID, len(t.Slots), t.MaxPhotos)
	}
	for i, s := range t.Slots {
		if s.Width <= 0 || s.Height <= 0 {
			return fmt.Errorf("%w: frame %d slot %d has non-positive size", ErrInvalidTemplate, t.ID, i)
		}
	}
	return nil
}

// Catalog is the registry of available frame templates. It is safe for
// concurrent use and can be swapped out wholesale by Replace.
type Catalog struct {
	mu     sync.RWMutex
	frames []FrameTemplate
}

// New validates templates and returns a catalog holding them in order.
func New(templates []FrameTemplate) (*Catalog, error) {
	c := &Catalog{}
	if err := c.Replace(templates); err != nil {
		return nil, err
	}
	return c, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	templates, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("built-in frame catalog: %v", err))
	}
	c, err := New(templates)
	if err != nil {
		panic(fmt.Sprintf("built-in frame catalog: %v", err))
	}
	return c
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) ([]FrameTemplate, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse frame catalog: %w", err)
	}
	return f.Frames, nil
}

// Replace validates templates and swaps them in. On error the catalog is
// left untouched.
func (c *Catalog) Replace(templates []FrameTemplate) error {
	if len(templates) == 0 {
		return fmt.Errorf("%w: catalog is empty", ErrInvalidTemplate)
	}

	seen := make(map[int]bool, len(templates))
	next := make([]FrameTemplate, 0, len(templates))
	for _, t := range templates {
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: duplicate frame id %d", ErrInvalidTemplate, t.ID)
		}
		seen[t.ID] = true
		next = append(next, t.clone())
	}

	c.mu.Lock()
	c.frames = next
	c.mu.Unlock()
	return nil
}

// Lookup resolves a frame id as it arrives from a query parameter. Empty,
// malformed or unknown ids resolve to the first template.
func (c *Catalog) Lookup(id string) FrameTemplate {
	if n, err := strconv.Atoi(strings.TrimSpace(id)); err == nil {
		if t, ok := c.Get(n); ok {
			return t
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frames[0].clone()
}

// Get returns the template with the given id.
func (c *Catalog) Get(id int) (FrameTemplate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.frames {
		if t.ID == id {
			return t.clone(), true
		}
	}
	return FrameTemplate{}, false
}

// List returns every template in catalog order.
func (c *Catalog) List() []FrameTemplate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]FrameTemplate, 0, len(c.frames))
	for _, t := range c.frames {
		out = append(out, t.clone())
	}
	return out
}
