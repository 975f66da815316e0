package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/lehigh-university-libraries/photobooth/internal/camera"
	"github.com/lehigh-university-libraries/photobooth/internal/capture"
	"github.com/lehigh-university-libraries/photobooth/internal/events"
	"github.com/lehigh-university-libraries/photobooth/internal/export"
	"github.com/lehigh-university-libraries/photobooth/internal/frames"
	"github.com/lehigh-university-libraries/photobooth/internal/models"
	"github.com/lehigh-university-libraries/photobooth/internal/storage"
)

// Camera modes
const (
	CameraBrowser   = "browser"
	CameraHotFolder = "hotfolder"
)

type Options struct {
	Catalog  *frames.Catalog
	Store    *storage.SessionStore
	Exporter *export.Service

	CameraMode     string
	HotFolder      string
	ShutterTimeout time.Duration
	Clock          capture.Clock

	StaticDir  string
	UploadDir  string
	HTTPClient *http.Client

	// BaseContext bounds every countdown; cancelling it aborts them all.
	BaseContext context.Context
}

// booth is the live state of one session: its capture flow and the bus
// its websocket clients listen on.
type booth struct {
	flow    *capture.Flow
	bus     *events.Bus
	shutter *camera.Shutter

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	closed  bool
}

// attach registers a websocket client. It reports false once the booth has
// been forgotten.
func (b *booth) attach(conn *websocket.Conn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	if b.clients == nil {
		b.clients = make(map[*websocket.Conn]struct{})
	}
	b.clients[conn] = struct{}{}
	return true
}

func (b *booth) detach(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, conn)
}

// closeClients tells every websocket client the session is gone and drops
// the connection.
func (b *booth) closeClients() {
	b.mu.Lock()
	b.closed = true
	clients := b.clients
	b.clients = nil
	b.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "session ended")
	for conn := range clients {
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = conn.Close()
	}
}

type Handler struct {
	catalog      *frames.Catalog
	sessionStore *storage.SessionStore
	exporter     *export.Service

	cameraMode     string
	hotFolder      string
	shutterTimeout time.Duration
	clock          capture.Clock

	staticDir  string
	uploadDir  string
	httpClient *http.Client
	ctx        context.Context
	upgrader   websocket.Upgrader

	mu     sync.RWMutex
	booths map[string]*booth
}

func New(opts Options) *Handler {
	if opts.Catalog == nil {
		opts.Catalog = frames.Default()
	}
	if opts.Store == nil {
		opts.Store = storage.New()
	}
	if opts.CameraMode == "" {
		opts.CameraMode = CameraBrowser
	}
	if opts.StaticDir == "" {
		opts.StaticDir = "static"
	}
	if opts.UploadDir == "" {
		opts.UploadDir = "static/uploads"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}

	return &Handler{
		catalog:        opts.Catalog,
		sessionStore:   opts.Store,
		exporter:       opts.Exporter,
		cameraMode:     opts.CameraMode,
		hotFolder:      opts.HotFolder,
		shutterTimeout: opts.ShutterTimeout,
		clock:          opts.Clock,
		staticDir:      opts.StaticDir,
		uploadDir:      opts.UploadDir,
		httpClient:     opts.HTTPClient,
		ctx:            opts.BaseContext,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		booths: make(map[string]*booth),
	}
}

// Router wires every endpoint onto a gorilla/mux router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/frames", h.HandleListFrames).Methods(http.MethodGet)
	api.HandleFunc("/frames/{id}", h.HandleGetFrame).Methods(http.MethodGet)
	api.HandleFunc("/filters", h.HandleListFilters).Methods(http.MethodGet)

	api.HandleFunc("/sessions", h.HandleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions", h.HandleSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", h.HandleSessionDetail).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", h.HandleDeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/timer", h.HandleSetTimer).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/facing", h.HandleSetFacing).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/countdown", h.HandleCountdown).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/cancel", h.HandleCancel).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/shutter", h.HandleShutter).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/upload", h.HandleUpload).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/pending", h.HandlePending).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/confirm", h.HandleConfirm).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/discard", h.HandleDiscard).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/photos/{index:[0-9]+}", h.HandleGetPhoto).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/photos/{index:-?[0-9]+}", h.HandleRemovePhoto).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/finalize", h.HandleFinalize).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/reset", h.HandleReset).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/preview", h.HandlePreview).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/download", h.HandleDownload).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/print", h.HandlePrint).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/share", h.HandleShare).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/events", h.HandleEvents).Methods(http.MethodGet)

	r.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
	r.PathPrefix("/").HandlerFunc(h.HandleStatic)

	return r
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message, "status", code)
	} else {
		slog.Debug(message, "status", code)
	}
	h.writeJSONStatus(w, code, map[string]any{"error": message})
}

// writeErr maps a domain error onto its HTTP status.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	h.writeError(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, capture.ErrInvalidTimer),
		errors.Is(err, capture.ErrInvalidIndex),
		errors.Is(err, camera.ErrInvalidFacing),
		errors.Is(err, models.ErrEmptyImage),
		errors.Is(err, models.ErrUnsupportedImage),
		errors.Is(err, models.ErrImageTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, capture.ErrBusy),
		errors.Is(err, capture.ErrSessionFull),
		errors.Is(err, capture.ErrNotReady),
		errors.Is(err, capture.ErrNoPending),
		errors.Is(err, camera.ErrNoShutterRequest),
		errors.Is(err, export.ErrNoPhotos):
		return http.StatusConflict
	case errors.Is(err, export.ErrUploadFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (*models.BoothSession, bool) {
	session, exists := h.sessionStore.Get(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

func (h *Handler) getBoothOrError(w http.ResponseWriter, r *http.Request) (string, *booth, bool) {
	sessionID := mux.Vars(r)["id"]

	h.mu.RLock()
	b, exists := h.booths[sessionID]
	h.mu.RUnlock()

	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return sessionID, nil, false
	}
	h.sessionStore.Touch(sessionID)
	return sessionID, b, true
}

func (h *Handler) newBooth(session *models.BoothSession, t frames.FrameTemplate) *booth {
	bus := events.NewBus()
	b := &booth{bus: bus}

	var cam camera.Camera
	switch h.cameraMode {
	case CameraHotFolder:
		cam = camera.NewHotFolder(h.hotFolder, h.shutterTimeout)
	default:
		b.shutter = camera.NewShutter(session.ID, bus, h.shutterTimeout)
		cam = b.shutter
	}

	b.flow = capture.New(capture.Config{
		SessionID: session.ID,
		Template:  t,
		Store:     h.sessionStore,
		Camera:    cam,
		Bus:       bus,
		Clock:     h.clock,
	})

	h.mu.Lock()
	h.booths[session.ID] = b
	h.mu.Unlock()
	return b
}

// Forget drops the live state of sessions already removed from the store.
func (h *Handler) Forget(sessionIDs ...string) {
	for _, id := range sessionIDs {
		h.mu.Lock()
		b, exists := h.booths[id]
		delete(h.booths, id)
		h.mu.Unlock()

		if exists {
			b.flow.Cancel()
			b.bus.Close()
			b.closeClients()
		}
	}
}

// Shutdown cancels every countdown and closes every event bus.
func (h *Handler) Shutdown() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.booths))
	for id := range h.booths {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	h.Forget(ids...)
}
