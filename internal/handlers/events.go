package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lehigh-university-libraries/photobooth/internal/events"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

// HandleEvents streams the session's capture events over a websocket. The
// first message is the current status.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID, b, ok := h.getBoothOrError(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}

	if !b.attach(conn) {
		_ = conn.Close()
		return
	}

	subID := uuid.NewString()
	ch := make(chan events.Event, 32)
	if err := b.bus.Subscribe(subID, ch); err != nil {
		slog.Warn("Unable to subscribe to session events", "session_id", sessionID, "error", err)
		b.detach(conn)
		_ = conn.Close()
		return
	}

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	writeMu := &sync.Mutex{}
	_ = writeJSON(conn, writeMu, map[string]any{"type": "status", "status": b.flow.Snapshot()})

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case e := <-ch:
				if err := writeJSON(conn, writeMu, e); err != nil {
					_ = conn.Close()
					return
				}
			case <-ticker.C:
				if err := writeMessage(conn, writeMu, websocket.PingMessage, nil); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	go func() {
		defer close(done)
		defer func() {
			_ = b.bus.Unsubscribe(subID)
			b.detach(conn)
			_ = conn.Close()
			slog.Debug("Websocket client left", "session_id", sessionID)
		}()
		for {
			// clients only send control frames; reading keeps pongs flowing
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(conn *websocket.Conn, writeMu *sync.Mutex, payload any) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(payload)
}

func writeMessage(conn *websocket.Conn, writeMu *sync.Mutex, messageType int, payload []byte) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, payload)
}
