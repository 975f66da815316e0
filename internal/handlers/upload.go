package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/photobooth/internal/models"
)

// HandleUpload submits a manually chosen image, either a multipart file or
// a JSON {"image_url": ...}, as the pending capture.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	sessionID, b, ok := h.getBoothOrError(w, r)
	if !ok {
		return
	}

	var (
		photo models.Photo
		err   error
	)
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		photo, err = h.photoFromURL(r)
	} else {
		photo, err = h.photoFromForm(r, models.SourceUpload)
	}
	if err != nil {
		h.writeErr(w, err)
		return
	}

	if err := b.flow.Submit(photo); err != nil {
		h.writeErr(w, err)
		return
	}

	slog.Info("Image submitted", "session_id", sessionID, "source", photo.Source, "width", photo.Width, "height", photo.Height)
	h.writeJSON(w, b.flow.Snapshot())
}

// HandleShutter receives the still the browser grabbed for a shutter event.
func (h *Handler) HandleShutter(w http.ResponseWriter, r *http.Request) {
	_, b, ok := h.getBoothOrError(w, r)
	if !ok {
		return
	}
	if b.shutter == nil {
		h.writeError(w, "Session camera does not accept browser frames", http.StatusConflict)
		return
	}

	var (
		photo models.Photo
		err   error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		photo, err = h.photoFromForm(r, models.SourceCamera)
	} else {
		photo, err = readPhoto(r.Body, models.SourceCamera)
	}
	if err != nil {
		h.writeErr(w, err)
		return
	}

	if err := b.shutter.Deliver(photo); err != nil {
		h.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) photoFromForm(r *http.Request, source string) (models.Photo, error) {
	file, _, err := r.FormFile("files")
	if err != nil {
		file, _, err = r.FormFile("file")
		if err != nil {
			return models.Photo{}, fmt.Errorf("%w: %v", models.ErrEmptyImage, err)
		}
	}
	defer file.Close()

	return readPhoto(file, source)
}

func (h *Handler) photoFromURL(r *http.Request) (models.Photo, error) {
	var request struct {
		ImageURL string `json:"image_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		return models.Photo{}, fmt.Errorf("%w: invalid JSON: %v", models.ErrEmptyImage, err)
	}
	if request.ImageURL == "" {
		return models.Photo{}, fmt.Errorf("%w: image_url is required", models.ErrEmptyImage)
	}

	data, err := h.downloadImageFromURL(r.Context(), request.ImageURL)
	if err != nil {
		slog.Warn("Image URL produced no image", "url", request.ImageURL, "error", err)
		return models.Photo{}, fmt.Errorf("%w: %v", models.ErrEmptyImage, err)
	}
	return models.DecodePhoto(data, models.SourceURL)
}

func (h *Handler) downloadImageFromURL(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	return readLimited(resp.Body)
}

func readPhoto(r io.Reader, source string) (models.Photo, error) {
	data, err := readLimited(r)
	if err != nil {
		return models.Photo{}, err
	}
	return models.DecodePhoto(data, source)
}

// readLimited reads at most one byte past MaxPhotoBytes so oversized
// bodies are rejected instead of truncated.
func readLimited(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(r, models.MaxPhotoBytes+1)); err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if buf.Len() > models.MaxPhotoBytes {
		return nil, fmt.Errorf("%w: max %d bytes", models.ErrImageTooLarge, models.MaxPhotoBytes)
	}
	return buf.Bytes(), nil
}
