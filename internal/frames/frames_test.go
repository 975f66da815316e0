package frames

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const twoFrameCatalog = `frames:
  - id: 7
    name: Duo
    category: Vertical
    artwork: duo.png
    max_photos: 2
    slots:
      - { top: 100, left: 100, width: 400, height: 600 }
      - { top: 800, left: 100, width: 400, height: 600, rotate: 2 }
  - id: 9
    name: Solo
    category: Story
    max_photos: 1
    slots:
      - { top: 0, left: 0, width: 1200, height: 1800 }
`

func TestDefaultCatalogSlotCounts(t *testing.T) {
	c := Default()

	frames := c.List()
	if len(frames) == 0 {
		t.Fatal("Expected built-in frames, got none")
	}

	for _, f := range frames {
		if len(f.Slots) != f.MaxPhotos {
			t.Errorf("Frame %d (%s): expected %d slots, got %d", f.ID, f.Name, f.MaxPhotos, len(f.Slots))
		}
	}
}

func TestLookup(t *testing.T) {
	c := Default()
	first := c.List()[0]

	tests := []struct {
		name     string
		id       string
		expected int
	}{
		{name: "known id", id: "3", expected: 3},
		{name: "known id with spaces", id: " 1 ", expected: 1},
		{name: "empty falls back", id: "", expected: first.ID},
		{name: "unknown falls back", id: "42", expected: first.ID},
		{name: "malformed falls back", id: "gold", expected: first.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Lookup(tt.id)
			if got.ID != tt.expected {
				t.Errorf("Expected frame %d, got %d", tt.expected, got.ID)
			}
		})
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	c := Default()

	f := c.Lookup("1")
	f.Slots[0].Top = -1

	if c.Lookup("1").Slots[0].Top == -1 {
		t.Error("Expected catalog templates to be immutable through Lookup")
	}
}

func TestValidate(t *testing.T) {
	valid := FrameTemplate{
		ID:        1,
		Name:      "One",
		Category:  CategoryPhotostrip,
		MaxPhotos: 1,
		Slots:     []Slot{{Width: 10, Height: 10}},
	}

	tests := []struct {
		name    string
		mutate  func(*FrameTemplate)
		wantErr bool
	}{
		{name: "valid", mutate: func(*FrameTemplate) {}},
		{name: "missing name", mutate: func(f *FrameTemplate) { f.Name = "" }, wantErr: true},
		{name: "unknown category", mutate: func(f *FrameTemplate) { f.Category = "Poster" }, wantErr: true},
		{name: "zero photos", mutate: func(f *FrameTemplate) { f.MaxPhotos = 0; f.Slots = nil }, wantErr: true},
		{name: "slot count mismatch", mutate: func(f *FrameTemplate) { f.MaxPhotos = 2 }, wantErr: true},
		{name: "zero width slot", mutate: func(f *FrameTemplate) { f.Slots = []Slot{{Height: 10}} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			f.Slots = append([]Slot(nil), valid.Slots...)
			tt.mutate(&f)

			err := f.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidTemplate) {
				t.Errorf("Expected ErrInvalidTemplate, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	f := FrameTemplate{ID: 1, Name: "A", Category: Category4R, MaxPhotos: 1, Slots: []Slot{{Width: 1, Height: 1}}}

	if _, err := New([]FrameTemplate{f, f}); !errors.Is(err, ErrInvalidTemplate) {
		t.Errorf("Expected ErrInvalidTemplate for duplicate ids, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.yaml")
	if err := os.WriteFile(path, []byte(twoFrameCatalog), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := len(c.List()); got != 2 {
		t.Fatalf("Expected 2 frames, got %d", got)
	}
	duo, ok := c.Get(7)
	if !ok {
		t.Fatal("Expected frame 7 to exist")
	}
	if duo.Slots[1].Rotate != 2 {
		t.Errorf("Expected rotate 2, got %v", duo.Slots[1].Rotate)
	}
	if c.Lookup("").ID != 7 {
		t.Errorf("Expected fallback to first frame in file order")
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.yaml":        twoFrameCatalog,
		"b.yml":         "frames:\n  - {id: 11, name: Extra, category: 4R, max_photos: 1, slots: [{top: 0, left: 0, width: 10, height: 10}]}\n",
		"notes.txt":     "ignored",
		".hidden.yaml":  "not: [valid",
		"sub/deep.yaml": "frames:\n  - {id: 12, name: Deep, category: Story, max_photos: 1, slots: [{top: 0, left: 0, width: 10, height: 10}]}\n",
	}
	for name, content := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for _, id := range []int{7, 9, 11, 12} {
		if _, ok := c.Get(id); !ok {
			t.Errorf("Expected frame %d to be loaded", id)
		}
	}
}

func TestLoadRejectsInvalidCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.yaml")
	bad := "frames:\n  - {id: 1, name: Bad, category: 4R, max_photos: 2, slots: [{top: 0, left: 0, width: 10, height: 10}]}\n"
	if err := os.WriteFile(path, []byte(bad), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); !errors.Is(err, ErrInvalidTemplate) {
		t.Errorf("Expected ErrInvalidTemplate, got %v", err)
	}
}

func TestWatchReloadsCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.yaml")
	if err := os.WriteFile(path, []byte(twoFrameCatalog), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx, path) }()

	updated := "frames:\n  - {id: 20, name: Fresh, category: 4R, max_photos: 1, slots: [{top: 0, left: 0, width: 10, height: 10}]}\n"
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(50 * time.Millisecond)
		if _, ok := c.Get(20); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Timeout waiting for catalog reload")
		}
	}

	if _, ok := c.Get(7); ok {
		t.Error("Expected old frames to be replaced")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned error: %v", err)
	}
}
