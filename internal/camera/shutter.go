package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/photobooth/internal/events"
	"github.com/lehigh-university-libraries/photobooth/internal/models"
)

// Shutter asks the browser for a frame over the session's event bus and
// waits for it to be delivered back.
type Shutter struct {
	sessionID string
	bus       *events.Bus
	timeout   time.Duration

	mu      sync.Mutex
	pending chan models.Photo
}

func NewShutter(sessionID string, bus *events.Bus, timeout time.Duration) *Shutter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Shutter{sessionID: sessionID, bus: bus, timeout: timeout}
}

func (s *Shutter) Snapshot(ctx context.Context, facing Facing) (models.Photo, error) {
	ch := make(chan models.Photo, 1)

	s.mu.Lock()
	s.pending = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.pending == ch {
			s.pending = nil
		}
		s.mu.Unlock()
	}()

	s.bus.Publish(events.Event{Type: events.TypeShutter, SessionID: s.sessionID, Facing: string(facing)})
	slog.Debug("Shutter requested", "session_id", s.sessionID, "facing", facing)

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case photo := <-ch:
		return photo, nil
	case <-timer.C:
		return models.Photo{}, fmt.Errorf("%w: timed out after %s", ErrNoImage, s.timeout)
	case <-ctx.Done():
		return models.Photo{}, ctx.Err()
	}
}

// Deliver hands a browser frame to the waiting Snapshot.
func (s *Shutter) Deliver(photo models.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return ErrNoShutterRequest
	}
	select {
	case s.pending <- photo:
		s.pending = nil
		return nil
	default:
		return ErrNoShutterRequest
	}
}
