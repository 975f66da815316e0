package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lehigh-university-libraries/photobooth/internal/capture"
	"github.com/lehigh-university-libraries/photobooth/internal/filters"
)

func (h *Handler) HandleListFrames(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.catalog.List())
}

// HandleGetFrame never 404s: unknown ids resolve to the first frame.
func (h *Handler) HandleGetFrame(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.catalog.Lookup(mux.Vars(r)["id"]))
}

func (h *Handler) HandleListFilters(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]any{
		"filters": filters.All(),
		"timers":  capture.TimerOptions,
	})
}
