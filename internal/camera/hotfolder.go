package camera

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lehigh-university-libraries/photobooth/internal/models"
)

// HotFolder waits for a tethered camera to drop a new image into Dir.
// Facing is ignored; the tethered body has one lens.
type HotFolder struct {
	Dir     string
	Timeout time.Duration
}

func NewHotFolder(dir string, timeout time.Duration) *HotFolder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HotFolder{Dir: dir, Timeout: timeout}
}

func (h *HotFolder) Snapshot(ctx context.Context, _ Facing) (models.Photo, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return models.Photo{}, fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(h.Dir); err != nil {
		return models.Photo{}, fmt.Errorf("failed to watch %s: %w", h.Dir, err)
	}

	timer := time.NewTimer(h.Timeout)
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return models.Photo{}, ErrNoImage
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isImageFile(event.Name) {
				continue
			}
			photo, err := readPhoto(event.Name)
			if err != nil {
				// the camera may still be writing; wait for the next event
				slog.Debug("Hot folder file not ready", "path", event.Name, "error", err)
				continue
			}
			slog.Info("Hot folder image received", "path", event.Name)
			return photo, nil
		case err, ok := <-w.Errors:
			if !ok {
				return models.Photo{}, ErrNoImage
			}
			slog.Warn("Hot folder watch error", "error", err)
		case <-timer.C:
			return models.Photo{}, fmt.Errorf("%w: no file in %s after %s", ErrNoImage, h.Dir, h.Timeout)
		case <-ctx.Done():
			return models.Photo{}, ctx.Err()
		}
	}
}

func readPhoto(path string) (models.Photo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Photo{}, err
	}
	return models.DecodePhoto(data, models.SourceHotFolder)
}

func isImageFile(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}
