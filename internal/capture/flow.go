// Package capture drives one booth session from countdown to a full tray.
//
// A flow moves between three states:
//
//	idle -> countdown -> captured -> (confirm | discard) -> idle
//
// The tray never holds more than the frame's MaxPhotos. Finalize hands the
// tray to the session store once it is exactly full.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/photobooth/internal/camera"
	"github.com/lehigh-university-libraries/photobooth/internal/events"
	"github.com/lehigh-university-libraries/photobooth/internal/frames"
	"github.com/lehigh-university-libraries/photobooth/internal/models"
	"github.com/lehigh-university-libraries/photobooth/internal/storage"
)

type State string

const (
	StateIdle      State = "idle"
	StateCountdown State = "countdown"
	StateCaptured  State = "captured"
)

// DefaultTimer is the countdown length before a visitor picks one.
const DefaultTimer = 3

// TimerOptions lists the accepted countdown lengths in seconds.
var TimerOptions = []int{3, 5, 10}

var (
	ErrBusy         = errors.New("countdown in progress")
	ErrSessionFull  = errors.New("session already has all photos")
	ErrNotReady     = errors.New("session is not full yet")
	ErrNoPending    = errors.New("no pending capture")
	ErrInvalidIndex = errors.New("photo index out of range")
	ErrInvalidTimer = errors.New("invalid timer")
)

type Config struct {
	SessionID string
	Template  frames.FrameTemplate
	Store     *storage.SessionStore
	Camera    camera.Camera
	Bus       *events.Bus
	Clock     Clock
}

// Status is a point-in-time view of a flow.
type Status struct {
	SessionID   string        `json:"session_id"`
	FrameID     int           `json:"frame_id"`
	State       State         `json:"state"`
	Timer       int           `json:"timer"`
	Facing      camera.Facing `json:"facing"`
	Count       int           `json:"count"`
	MaxPhotos   int           `json:"max_photos"`
	Pending     bool          `json:"pending"`
	CanCapture  bool          `json:"can_capture"`
	CanFinalize bool          `json:"can_finalize"`
}

type Flow struct {
	sessionID string
	template  frames.FrameTemplate
	store     *storage.SessionStore
	camera    camera.Camera
	bus       *events.Bus
	clock     Clock

	mu      sync.Mutex
	state   State
	timer   int
	facing  camera.Facing
	tray    []models.Photo
	pending *models.Photo
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(cfg Config) *Flow {
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	if cfg.Bus == nil {
		cfg.Bus = events.NewBus()
	}
	return &Flow{
		sessionID: cfg.SessionID,
		template:  cfg.Template,
		store:     cfg.Store,
		camera:    cfg.Camera,
		bus:       cfg.Bus,
		clock:     cfg.Clock,
		state:     StateIdle,
		timer:     DefaultTimer,
		facing:    camera.FacingFront,
	}
}

func (f *Flow) Template() frames.FrameTemplate { return f.template }

func (f *Flow) Snapshot() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status()
}

func (f *Flow) status() Status {
	full := len(f.tray) >= f.template.MaxPhotos
	return Status{
		SessionID:   f.sessionID,
		FrameID:     f.template.ID,
		State:       f.state,
		Timer:       f.timer,
		Facing:      f.facing,
		Count:       len(f.tray),
		MaxPhotos:   f.template.MaxPhotos,
		Pending:     f.pending != nil,
		CanCapture:  f.state == StateIdle && !full,
		CanFinalize: len(f.tray) == f.template.MaxPhotos,
	}
}

// SetTimer picks the countdown length used by the next countdown.
func (f *Flow) SetTimer(seconds int) error {
	if !slices.Contains(TimerOptions, seconds) {
		return fmt.Errorf("%w: %d (want one of %v)", ErrInvalidTimer, seconds, TimerOptions)
	}
	f.mu.Lock()
	f.timer = seconds
	f.mu.Unlock()
	f.publishState()
	return nil
}

func (f *Flow) SetFacing(facing camera.Facing) {
	f.mu.Lock()
	f.facing = facing
	f.mu.Unlock()
	f.publishState()
}

// StartCountdown begins the timer and returns immediately. The still is
// requested from the camera after the last tick.
func (f *Flow) StartCountdown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateIdle {
		return ErrBusy
	}
	if len(f.tray) >= f.template.MaxPhotos {
		return ErrSessionFull
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	f.state = StateCountdown
	f.cancel = cancel
	f.done = done

	n, facing := f.timer, f.facing
	f.bus.Publish(events.Event{Type: events.TypeCountdownStarted, SessionID: f.sessionID, Remaining: n})
	slog.Info("Countdown started", "session_id", f.sessionID, "seconds", n)

	go f.run(ctx, cancel, n, facing, done)
	return nil
}

func (f *Flow) run(ctx context.Context, cancel context.CancelFunc, n int, facing camera.Facing, done chan struct{}) {
	defer close(done)
	defer cancel()

	ticker := f.clock.NewTicker(time.Second)
	for remaining := n - 1; remaining >= 0; remaining-- {
		select {
		case <-ticker.C():
			f.bus.Publish(events.Event{Type: events.TypeTick, SessionID: f.sessionID, Remaining: remaining})
		case <-ctx.Done():
			ticker.Stop()
			f.abort()
			return
		}
	}
	ticker.Stop()

	photo, err := f.camera.Snapshot(ctx, facing)
	if err == nil && len(photo.Data) == 0 {
		err = camera.ErrNoImage
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancel = nil

	// checked under the lock so a Cancel racing the camera always wins
	if ctx.Err() != nil {
		f.abortLocked()
		return
	}

	if err != nil {
		slog.Warn("Capture produced no image", "session_id", f.sessionID, "error", err)
		f.state = StateIdle
		f.bus.Publish(events.Event{Type: events.TypeCaptureFailed, SessionID: f.sessionID, Error: err.Error()})
		return
	}

	f.pending = &photo
	f.state = StateCaptured
	f.bus.Publish(events.Event{Type: events.TypeCaptured, SessionID: f.sessionID, Count: len(f.tray)})
	slog.Info("Photo captured", "session_id", f.sessionID, "source", photo.Source)
}

func (f *Flow) abort() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abortLocked()
}

func (f *Flow) abortLocked() {
	f.cancel = nil
	f.state = StateIdle
	f.bus.Publish(events.Event{Type: events.TypeCancelled, SessionID: f.sessionID})
	slog.Info("Countdown cancelled", "session_id", f.sessionID)
}

// Cancel stops a running countdown and waits for it to return to idle.
// Calling it without a countdown does nothing.
func (f *Flow) Cancel() {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Wait blocks until the current countdown, if any, has finished.
func (f *Flow) Wait() {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Submit sets a manually acquired image as the pending capture.
func (f *Flow) Submit(photo models.Photo) error {
	if len(photo.Data) == 0 {
		return models.ErrEmptyImage
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == StateCountdown {
		return ErrBusy
	}
	if len(f.tray) >= f.template.MaxPhotos {
		return ErrSessionFull
	}

	f.pending = &photo
	f.state = StateCaptured
	f.bus.Publish(events.Event{Type: events.TypeCaptured, SessionID: f.sessionID, Count: len(f.tray)})
	return nil
}

// Confirm moves the pending capture into the tray. At the cap nothing
// changes.
func (f *Flow) Confirm() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pending == nil {
		return ErrNoPending
	}
	if len(f.tray) >= f.template.MaxPhotos {
		return ErrSessionFull
	}

	f.tray = append(f.tray, *f.pending)
	f.pending = nil
	f.state = StateIdle
	f.bus.Publish(events.Event{Type: events.TypeConfirmed, SessionID: f.sessionID, Count: len(f.tray)})
	return nil
}

func (f *Flow) Discard() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pending == nil {
		return ErrNoPending
	}
	f.pending = nil
	f.state = StateIdle
	f.bus.Publish(events.Event{Type: events.TypeDiscarded, SessionID: f.sessionID, Count: len(f.tray)})
	return nil
}

// Remove drops tray photo i; later photos shift left.
func (f *Flow) Remove(i int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if i < 0 || i >= len(f.tray) {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, i)
	}
	f.tray = slices.Delete(f.tray, i, i+1)
	f.bus.Publish(events.Event{Type: events.TypeRemoved, SessionID: f.sessionID, Count: len(f.tray)})
	return nil
}

// Finalize writes the full tray to the session store.
func (f *Flow) Finalize() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.tray) != f.template.MaxPhotos {
		return fmt.Errorf("%w: %d of %d photos", ErrNotReady, len(f.tray), f.template.MaxPhotos)
	}
	if err := f.store.SetPhotos(f.sessionID, f.tray); err != nil {
		return fmt.Errorf("failed to store photos: %w", err)
	}

	f.bus.Publish(events.Event{Type: events.TypeFinalized, SessionID: f.sessionID, Count: len(f.tray)})
	slog.Info("Session finalized", "session_id", f.sessionID, "photos", len(f.tray))
	return nil
}

// Reset cancels any countdown and empties the tray, the pending capture and
// the photos already written to the session store.
func (f *Flow) Reset() error {
	f.Cancel()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		f.cancel()
	}
	f.tray = nil
	f.pending = nil
	f.state = StateIdle
	if err := f.store.ClearPhotos(f.sessionID); err != nil {
		return fmt.Errorf("failed to clear photos: %w", err)
	}

	f.bus.Publish(events.Event{Type: events.TypeReset, SessionID: f.sessionID})
	slog.Info("Session reset", "session_id", f.sessionID)
	return nil
}

// Photos returns a copy of the tray.
func (f *Flow) Photos() []models.Photo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.tray)
}

func (f *Flow) Pending() (models.Photo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == nil {
		return models.Photo{}, false
	}
	return *f.pending, true
}

func (f *Flow) publishState() {
	f.mu.Lock()
	s := f.status()
	f.mu.Unlock()
	f.bus.Publish(events.Event{Type: events.TypeState, SessionID: f.sessionID, Count: s.Count, Facing: string(s.Facing)})
}
