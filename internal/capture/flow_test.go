package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/photobooth/internal/camera"
	"github.com/lehigh-university-libraries/photobooth/internal/events"
	"github.com/lehigh-university-libraries/photobooth/internal/frames"
	"github.com/lehigh-university-libraries/photobooth/internal/models"
	"github.com/lehigh-university-libraries/photobooth/internal/storage"
)

type fakeTicker struct{ ch chan time.Time }

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               {}

// fakeClock hands out one ticker that the test advances manually.
type fakeClock struct {
	ticker *fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{ticker: &fakeTicker{ch: make(chan time.Time)}}
}

func (c *fakeClock) NewTicker(time.Duration) Ticker { return c.ticker }

func (c *fakeClock) Tick() { c.ticker.ch <- time.Now() }

type fakeCamera struct {
	mu    sync.Mutex
	calls int
	ctx   context.Context
	photo models.Photo
	err   error

	// during runs inside Snapshot, before the photo is returned
	during func()
}

func (c *fakeCamera) Snapshot(ctx context.Context, _ camera.Facing) (models.Photo, error) {
	if c.during != nil {
		c.during()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.ctx = ctx
	return c.photo, c.err
}

func (c *fakeCamera) Context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

func (c *fakeCamera) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func photo() models.Photo {
	return models.Photo{Data: []byte{0xff}, Source: models.SourceUpload}
}

func template(n int) frames.FrameTemplate {
	slots := make([]frames.Slot, n)
	for i := range slots {
		slots[i] = frames.Slot{Width: 100, Height: 100}
	}
	return frames.FrameTemplate{ID: 1, Name: "Test", Category: frames.CategoryPhotostrip, MaxPhotos: n, Slots: slots}
}

func newFlow(t *testing.T, n int, cam camera.Camera, clock Clock) (*Flow, *storage.SessionStore, string) {
	t.Helper()
	store := storage.New()
	id := store.Create(1).ID
	return New(Config{SessionID: id, Template: template(n), Store: store, Camera: cam, Clock: clock}), store, id
}

func fill(t *testing.T, f *Flow, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := f.Submit(photo()); err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
		if err := f.Confirm(); err != nil {
			t.Fatalf("Confirm %d failed: %v", i, err)
		}
	}
}

func TestCountdownTicksThenCaptures(t *testing.T) {
	tests := []int{3, 5, 10}

	for _, n := range tests {
		t.Run(time.Duration(n*int(time.Second)).String(), func(t *testing.T) {
			clock := newFakeClock()
			cam := &fakeCamera{photo: models.Photo{Data: []byte{1}, Source: models.SourceCamera}}
			f, _, _ := newFlow(t, 4, cam, clock)

			bus := events.NewBus()
			f.bus = bus
			ch := make(chan events.Event, 32)
			_ = bus.Subscribe("test", ch)

			if err := f.SetTimer(n); err != nil {
				t.Fatal(err)
			}
			<-ch // state

			if err := f.StartCountdown(context.Background()); err != nil {
				t.Fatalf("StartCountdown failed: %v", err)
			}
			for i := 0; i < n; i++ {
				if cam.Calls() != 0 {
					t.Fatalf("Camera fired after %d ticks", i)
				}
				clock.Tick()
			}
			f.Wait()

			started := <-ch
			if started.Type != events.TypeCountdownStarted || started.Remaining != n {
				t.Errorf("Expected countdown_started(%d), got %+v", n, started)
			}
			for i := n - 1; i >= 0; i-- {
				e := <-ch
				if e.Type != events.TypeTick || e.Remaining != i {
					t.Errorf("Expected tick(%d), got %+v", i, e)
				}
			}
			if e := <-ch; e.Type != events.TypeCaptured {
				t.Errorf("Expected captured, got %+v", e)
			}

			if cam.Calls() != 1 {
				t.Errorf("Expected 1 camera call, got %d", cam.Calls())
			}
			s := f.Snapshot()
			if s.State != StateCaptured || !s.Pending {
				t.Errorf("Expected captured with pending photo, got %+v", s)
			}
			if s.CanCapture {
				t.Error("Expected flow to not be capturing after countdown")
			}
		})
	}
}

func TestCountdownCameraFailureIsNoop(t *testing.T) {
	tests := []struct {
		name string
		cam  *fakeCamera
	}{
		{name: "error", cam: &fakeCamera{err: camera.ErrNoImage}},
		{name: "empty image", cam: &fakeCamera{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			f, _, _ := newFlow(t, 4, tt.cam, clock)

			if err := f.StartCountdown(context.Background()); err != nil {
				t.Fatal(err)
			}
			for i := 0; i < DefaultTimer; i++ {
				clock.Tick()
			}
			f.Wait()

			s := f.Snapshot()
			if s.State != StateIdle || s.Pending || s.Count != 0 {
				t.Errorf("Expected untouched idle flow, got %+v", s)
			}
		})
	}
}

func TestCountdownReleasesContext(t *testing.T) {
	tests := []struct {
		name string
		cam  *fakeCamera
	}{
		{name: "captured", cam: &fakeCamera{photo: photo()}},
		{name: "camera error", cam: &fakeCamera{err: camera.ErrNoImage}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			f, _, _ := newFlow(t, 4, tt.cam, clock)

			if err := f.StartCountdown(context.Background()); err != nil {
				t.Fatal(err)
			}
			for i := 0; i < DefaultTimer; i++ {
				clock.Tick()
			}
			f.Wait()

			ctx := tt.cam.Context()
			if ctx == nil {
				t.Fatal("Expected the camera to be called")
			}
			if ctx.Err() == nil {
				t.Error("Expected the countdown context to be cancelled once the countdown finished")
			}
		})
	}
}

func TestCancelWhileCameraReturns(t *testing.T) {
	clock := newFakeClock()
	cam := &fakeCamera{photo: photo()}
	f, _, _ := newFlow(t, 4, cam, clock)

	bus := events.NewBus()
	f.bus = bus
	ch := make(chan events.Event, 32)
	_ = bus.Subscribe("test", ch)

	// cancel lands after the camera has produced its photo
	cam.during = func() {
		f.mu.Lock()
		cancel := f.cancel
		f.mu.Unlock()
		cancel()
	}

	if err := f.StartCountdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < DefaultTimer; i++ {
		clock.Tick()
	}
	f.Wait()

	s := f.Snapshot()
	if s.State != StateIdle || s.Pending {
		t.Errorf("Expected idle flow without pending photo, got %+v", s)
	}

	var last events.Event
	for len(ch) > 0 {
		last = <-ch
	}
	if last.Type != events.TypeCancelled {
		t.Errorf("Expected cancelled as the last event, got %+v", last)
	}
}

func TestReset(t *testing.T) {
	clock := newFakeClock()
	f, store, id := newFlow(t, 2, &fakeCamera{photo: photo()}, clock)

	fill(t, f, 2)
	if err := f.Finalize(); err != nil {
		t.Fatal(err)
	}
	if err := f.Submit(photo()); !errors.Is(err, ErrSessionFull) {
		t.Fatalf("Expected ErrSessionFull, got %v", err)
	}

	if err := f.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	s := f.Snapshot()
	if s.State != StateIdle || s.Count != 0 || s.Pending || !s.CanCapture {
		t.Errorf("Expected empty idle flow, got %+v", s)
	}
	session, _ := store.Get(id)
	if len(session.Photos) != 0 || session.Finalized {
		t.Errorf("Expected stored photos cleared, got %d finalized=%v", len(session.Photos), session.Finalized)
	}

	// a running countdown is stopped as well
	if err := f.StartCountdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	clock.Tick()
	if err := f.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if s := f.Snapshot(); s.State != StateIdle {
		t.Errorf("Expected idle after reset, got %s", s.State)
	}
}

func TestResetUnknownSession(t *testing.T) {
	store := storage.New()
	f := New(Config{SessionID: "missing", Template: template(1), Store: store, Camera: &fakeCamera{}, Clock: newFakeClock()})

	if err := f.Reset(); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestCancelCountdown(t *testing.T) {
	clock := newFakeClock()
	cam := &fakeCamera{photo: photo()}
	f, _, _ := newFlow(t, 4, cam, clock)

	if err := f.StartCountdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	clock.Tick()
	f.Cancel()

	if s := f.Snapshot(); s.State != StateIdle {
		t.Errorf("Expected idle after cancel, got %s", s.State)
	}
	if cam.Calls() != 0 {
		t.Errorf("Expected no camera call, got %d", cam.Calls())
	}

	// a new countdown may start after cancel
	if err := f.StartCountdown(context.Background()); err != nil {
		t.Errorf("Expected restart to succeed, got %v", err)
	}
	f.Cancel()
}

func TestStartCountdownGuards(t *testing.T) {
	clock := newFakeClock()
	f, _, _ := newFlow(t, 2, &fakeCamera{photo: photo()}, clock)

	if err := f.StartCountdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.StartCountdown(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}
	if err := f.Submit(photo()); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy for submit, got %v", err)
	}
	f.Cancel()

	fill(t, f, 2)
	if err := f.StartCountdown(context.Background()); !errors.Is(err, ErrSessionFull) {
		t.Errorf("Expected ErrSessionFull, got %v", err)
	}
}

func TestSetTimer(t *testing.T) {
	f, _, _ := newFlow(t, 4, &fakeCamera{}, newFakeClock())

	tests := []struct {
		seconds int
		wantErr bool
	}{
		{seconds: 3},
		{seconds: 5},
		{seconds: 10},
		{seconds: 0, wantErr: true},
		{seconds: 4, wantErr: true},
		{seconds: 60, wantErr: true},
	}

	for _, tt := range tests {
		err := f.SetTimer(tt.seconds)
		if tt.wantErr && !errors.Is(err, ErrInvalidTimer) {
			t.Errorf("%d: expected ErrInvalidTimer, got %v", tt.seconds, err)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("%d: unexpected error %v", tt.seconds, err)
		}
	}
	if got := f.Snapshot().Timer; got != 10 {
		t.Errorf("Expected last valid timer 10, got %d", got)
	}
}

func TestConfirmAtCapIsNoop(t *testing.T) {
	f, _, _ := newFlow(t, 4, &fakeCamera{}, newFakeClock())
	fill(t, f, 4)

	if err := f.Submit(photo()); !errors.Is(err, ErrSessionFull) {
		t.Errorf("Expected submit at cap to fail, got %v", err)
	}

	// force a pending capture past the cap
	p := photo()
	f.pending = &p
	if err := f.Confirm(); !errors.Is(err, ErrSessionFull) {
		t.Errorf("Expected ErrSessionFull, got %v", err)
	}
	if n := len(f.Photos()); n != 4 {
		t.Errorf("Expected tray to stay at 4, got %d", n)
	}
}

func TestDiscard(t *testing.T) {
	f, _, _ := newFlow(t, 4, &fakeCamera{}, newFakeClock())

	if err := f.Discard(); !errors.Is(err, ErrNoPending) {
		t.Errorf("Expected ErrNoPending, got %v", err)
	}
	_ = f.Submit(photo())
	if err := f.Discard(); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
	s := f.Snapshot()
	if s.State != StateIdle || s.Pending || s.Count != 0 {
		t.Errorf("Expected idle empty flow, got %+v", s)
	}
	if err := f.Confirm(); !errors.Is(err, ErrNoPending) {
		t.Errorf("Expected ErrNoPending, got %v", err)
	}
}

func TestRemoveShiftsLeft(t *testing.T) {
	f, _, _ := newFlow(t, 4, &fakeCamera{}, newFakeClock())
	for i := 0; i < 3; i++ {
		_ = f.Submit(models.Photo{Data: []byte{byte(i)}})
		_ = f.Confirm()
	}

	if err := f.Remove(1); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	got := f.Photos()
	if len(got) != 2 {
		t.Fatalf("Expected 2 photos, got %d", len(got))
	}
	if got[0].Data[0] != 0 || got[1].Data[0] != 2 {
		t.Errorf("Expected photos [0 2], got [%d %d]", got[0].Data[0], got[1].Data[0])
	}

	for _, i := range []int{-1, 2, 10} {
		if err := f.Remove(i); !errors.Is(err, ErrInvalidIndex) {
			t.Errorf("Remove(%d): expected ErrInvalidIndex, got %v", i, err)
		}
	}
}

func TestFinalizeOnlyWhenFull(t *testing.T) {
	f, store, id := newFlow(t, 4, &fakeCamera{}, newFakeClock())
	fill(t, f, 3)

	if err := f.Finalize(); !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}
	if s, _ := store.Get(id); len(s.Photos) != 0 {
		t.Errorf("Expected store untouched, got %d photos", len(s.Photos))
	}

	fill(t, f, 1)
	if !f.Snapshot().CanFinalize {
		t.Error("Expected CanFinalize when full")
	}
	if err := f.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	s, _ := store.Get(id)
	if len(s.Photos) != 4 || !s.Finalized {
		t.Errorf("Expected 4 finalized photos, got %d finalized=%v", len(s.Photos), s.Finalized)
	}
}

func TestFinalizeUnknownSession(t *testing.T) {
	store := storage.New()
	f := New(Config{SessionID: "gone", Template: template(1), Store: store, Camera: &fakeCamera{}})
	fill(t, f, 1)

	if err := f.Finalize(); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}
