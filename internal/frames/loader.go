package frames

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/karrick/godirwalk"
)

// Load reads a catalog from a YAML file, or from every *.yaml / *.yml file
// below a directory, and validates it.
func Load(path string) (*Catalog, error) {
	templates, err := loadTemplates(path)
	if err != nil {
		return nil, err
	}
	return New(templates)
}

func loadTemplates(path string) ([]FrameTemplate, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat frame catalog: %w", err)
	}

	if !info.IsDir() {
		return loadFile(path)
	}

	var templates []FrameTemplate
	err = godirwalk.Walk(path, &godirwalk.Options{
		Callback: func(p string, de *godirwalk.Dirent) error {
			if p != path && strings.HasPrefix(filepath.Base(p), ".") {
				if de.IsDir() {
					return godirwalk.SkipThis
				}
				return nil
			}
			if de.IsDir() || !isCatalogFile(p) {
				return nil
			}

			slog.Debug("Loading frame catalog file", "path", p)
			ts, err := loadFile(p)
			if err != nil {
				return err
			}
			templates = append(templates, ts...)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	return templates, nil
}

func loadFile(path string) ([]FrameTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame catalog %s: %w", path, err)
	}
	templates, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return templates, nil
}

func isCatalogFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Watch reloads the catalog from path whenever it changes on disk, until ctx
// is cancelled. A reload that fails validation is logged and the previous
// templates stay in place.
func (c *Catalog) Watch(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat frame catalog: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	defer w.Close()

	dir := path
	if !info.IsDir() {
		// editors often replace files by rename, so watch the parent
		dir = filepath.Dir(path)
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	slog.Info("Watching frame catalog", "path", path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !info.IsDir() && filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if info.IsDir() && !isCatalogFile(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}

			templates, err := loadTemplates(path)
			if err == nil {
				err = c.Replace(templates)
			}
			if err != nil {
				slog.Warn("Keeping previous frame catalog", "path", path, "error", err)
				continue
			}
			slog.Info("Frame catalog reloaded", "path", path, "frames", len(templates))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Error("Frame catalog watcher error", "error", err)
		}
	}
}
