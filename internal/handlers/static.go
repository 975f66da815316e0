package handlers

import (
	"net/http"
	"path/filepath"
	"strings"
)

// HandleStatic serves the booth UI and uploaded strips. Navigation such as
// /?frame=3 is resolved by the page itself.
func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	path = strings.TrimPrefix(path, "static/")

	// Prevent directory traversal attacks
	if strings.Contains(path, "..") {
		h.writeError(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	if name, ok := strings.CutPrefix(path, "uploads/"); ok {
		http.ServeFile(w, r, filepath.Join(h.uploadDir, filepath.FromSlash(name)))
		return
	}

	if path == "" {
		path = "index.html"
	}

	// Set appropriate content type based on file extension
	switch {
	case strings.HasSuffix(path, ".css"):
		w.Header().Set("Content-Type", "text/css")
	case strings.HasSuffix(path, ".js"):
		w.Header().Set("Content-Type", "application/javascript")
	case strings.HasSuffix(path, ".html"):
		w.Header().Set("Content-Type", "text/html")
	}

	http.ServeFile(w, r, filepath.Join(h.staticDir, filepath.FromSlash(path)))
}
