package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/lehigh-university-libraries/photobooth/internal/camera"
	"github.com/lehigh-university-libraries/photobooth/internal/capture"
	"github.com/lehigh-university-libraries/photobooth/internal/models"
)

type sessionResponse struct {
	Session *models.BoothSession `json:"session"`
	Status  capture.Status       `json:"status"`
	Frame   any                  `json:"frame"`
}

// HandleCreateSession starts an empty session for ?frame=<id>; a missing or
// unknown id selects the first frame.
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	t := h.catalog.Lookup(r.URL.Query().Get("frame"))
	session := h.sessionStore.Create(t.ID)
	b := h.newBooth(session, t)

	slog.Info("Session created", "session_id", session.ID, "frame_id", t.ID, "frame", t.Name)
	h.writeJSONStatus(w, http.StatusCreated, sessionResponse{Session: session, Status: b.flow.Snapshot(), Frame: t})
}

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessionStore.GetAll()
	sessionList := make([]*models.BoothSession, 0, len(sessions))
	for _, session := range sessions {
		sessionList = append(sessionList, session)
	}
	slices.SortFunc(sessionList, func(a, b *models.BoothSession) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	h.writeJSON(w, sessionList)
}

func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	sessionID, b, ok := h.getBoothOrError(w, r)
	if !ok {
		return
	}
	session, ok := h.getSessionOrError(w, sessionID)
	if !ok {
		return
	}
	h.writeJSON(w, sessionResponse{Session: session, Status: b.flow.Snapshot(), Frame: b.flow.Template()})
}

func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	if _, ok := h.getSessionOrError(w, sessionID); !ok {
		return
	}
	h.sessionStore.Delete(sessionID)
	h.Forget(sessionID)

	slog.Info("Session deleted", "session_id", sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSetTimer(w http.ResponseWriter, r *http.Request) {
	_, b, ok := h.getBoothOrError(w, r)
	if !ok {
		return
	}

	var request struct {
		Seconds int `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := b.flow.SetTimer(request.Seconds); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, b.flow.Snapshot())
}

func (h *Handler) HandleSetFacing(w http.ResponseWriter, r *http.Request) {
	_, b, ok := h.getBoothOrError(w, r)
	if !ok {
		return
	}

	var request struct {
		Facing string `json:"facing"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	facing, err := camera.ParseFacing(request.Facing)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	b.flow.SetFacing(facing)
	h.writeJSON(w, b.flow.Snapshot())
}

func (h *Handler) HandleCountdown(w http.ResponseWriter, r *http.Request) {
	_, b, ok := h.getBoothOrError(w, r)
	if !ok {
		return
	}
	// the countdown outlives this request
	if err := b.flow.StartCountdown(h.ctx); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSONStatus(w, http.StatusAccepted, b.flow.Snapshot())
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	_, b, ok := h.getBoothOrError(w, r)
	if !ok {
		return
	}
	b.flow.Cancel()
	h.writeJSON(w, b.flow.Snapshot())
}

func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	_, b, ok := h.getBoothOrError(w, r)
	if !ok {
		return
	}
	photo, ok := b.flow.Pending()
	if !ok {
		h.writeErr(w, capture.ErrNoPending)
		return
	}
	h.writePhoto(w, photo)
}

func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	_, b, ok := h.getBoothOrError(w, r)
	if !ok {
		return
	}
	if err := b.flow.Confirm(); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, b.flow.Snapshot())
}

func (h *Handler) HandleDiscard(w http.ResponseWriter, r *http.Request) {
	_, b, ok := h.getBoothOrError(w, r)
	if !ok {
		return
	}
	if err := b.flow.Discard(); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, b.flow.Snapshot())
}

func (h *Handler) HandleGetPhoto(w http.ResponseWriter, r *http.Request) {
	_, b, ok := h.getBoothOrError(w, r)
	if !ok {
		return
	}
	index, _ := strconv.Atoi(mux.Vars(r)["index"])
	photos := b.flow.Photos()
	if index >= len(photos) {
		h.writeErr(w, capture.ErrInvalidIndex)
		return
	}
	h.writePhoto(w, photos[index])
}

func (h *Handler) HandleRemovePhoto(w http.ResponseWriter, r *http.Request) {
	_, b, ok := h.getBoothOrError(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		h.writeError(w, "Invalid photo index", http.StatusBadRequest)
		return
	}
	if err := b.flow.Remove(index); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, b.flow.Snapshot())
}

func (h *Handler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	_, b, ok := h.getBoothOrError(w, r)
	if !ok {
		return
	}
	if err := b.flow.Finalize(); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, b.flow.Snapshot())
}

// HandleReset starts the session over: any countdown is stopped and both
// the tray and the stored photos are emptied.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	_, b, ok := h.getBoothOrError(w, r)
	if !ok {
		return
	}
	if err := b.flow.Reset(); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, b.flow.Snapshot())
}

func (h *Handler) writePhoto(w http.ResponseWriter, photo models.Photo) {
	contentType := photo.ContentType
	if !strings.HasPrefix(contentType, "image/") {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(photo.Data); err != nil {
		slog.Error("Unable to write photo", "err", err)
	}
}
