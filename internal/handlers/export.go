package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lehigh-university-libraries/photobooth/internal/export"
	"github.com/lehigh-university-libraries/photobooth/internal/filters"
	"github.com/lehigh-university-libraries/photobooth/internal/models"
)

// HandlePreview renders the strip inline. Before finalize it previews the
// tray so visitors can try filters while shooting.
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	sessionID, b, ok := h.getBoothOrError(w, r)
	if !ok {
		return
	}
	if h.exporter == nil {
		h.writeError(w, "Export is not configured", http.StatusServiceUnavailable)
		return
	}
	session, ok := h.getSessionOrError(w, sessionID)
	if !ok {
		return
	}
	if !session.Finalized {
		session.Photos = b.flow.Photos()
	}

	data, err := h.exporter.Render(r.Context(), session, b.flow.Template(), filters.Lookup(r.URL.Query().Get("filter")))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(data); err != nil {
		slog.Error("Unable to write preview", "err", err)
	}
}

func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	session, b, ok := h.finalizedSession(w, r)
	if !ok {
		return
	}

	artifact, err := h.exporter.Download(r.Context(), session, b.flow.Template(), filters.Lookup(r.URL.Query().Get("filter")))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeArtifact(w, artifact, "attachment")
}

func (h *Handler) HandlePrint(w http.ResponseWriter, r *http.Request) {
	session, b, ok := h.finalizedSession(w, r)
	if !ok {
		return
	}

	artifact, err := h.exporter.Print(r.Context(), session, b.flow.Template(), filters.Lookup(r.URL.Query().Get("filter")))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeArtifact(w, artifact, "inline")
}

// HandleShare uploads the strip. Any upload failure answers 502 with
// show_qr false so the client can offer a retry.
func (h *Handler) HandleShare(w http.ResponseWriter, r *http.Request) {
	session, b, ok := h.finalizedSession(w, r)
	if !ok {
		return
	}

	share, err := h.exporter.Share(r.Context(), session, b.flow.Template(), filters.Lookup(r.URL.Query().Get("filter")))
	if errors.Is(err, export.ErrUploadFailed) {
		h.writeJSONStatus(w, http.StatusBadGateway, map[string]any{"error": "Upload failed", "show_qr": false})
		return
	}
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, share)
}

func (h *Handler) finalizedSession(w http.ResponseWriter, r *http.Request) (*models.BoothSession, *booth, bool) {
	sessionID, b, ok := h.getBoothOrError(w, r)
	if !ok {
		return nil, nil, false
	}
	if h.exporter == nil {
		h.writeError(w, "Export is not configured", http.StatusServiceUnavailable)
		return nil, nil, false
	}
	session, ok := h.getSessionOrError(w, sessionID)
	if !ok {
		return nil, nil, false
	}
	return session, b, true
}

func (h *Handler) writeArtifact(w http.ResponseWriter, a export.Artifact, disposition string) {
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, a.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	if _, err := w.Write(a.Data); err != nil {
		slog.Error("Unable to write artifact", "filename", a.Filename, "err", err)
	}
}
