// Package events fans capture flow events out to websocket subscribers
// without ever blocking the publisher.
package events

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Type names a capture flow event.
type Type string

const (
	TypeState            Type = "state"
	TypeCountdownStarted Type = "countdown_started"
	TypeTick             Type = "tick"
	TypeShutter          Type = "shutter"
	TypeCaptured         Type = "captured"
	TypeCaptureFailed    Type = "capture_failed"
	TypeConfirmed        Type = "confirmed"
	TypeDiscarded        Type = "discarded"
	TypeRemoved          Type = "removed"
	TypeFinalized        Type = "finalized"
	TypeCancelled        Type = "cancelled"
	TypeReset            Type = "reset"
)

var (
	ErrSubscriberExists   = errors.New("subscriber already exists")
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrNilChannel         = errors.New("channel cannot be nil")
	ErrBusClosed          = errors.New("bus is closed")
)

// Event is one notification about a session's capture flow.
type Event struct {
	Type      Type      `json:"type"`
	SessionID string    `json:"session_id"`
	Remaining int       `json:"remaining"`
	Count     int       `json:"count,omitempty"`
	Facing    string    `json:"facing,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SubscriberStats counts deliveries for one subscriber.
type SubscriberStats struct {
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
}

type subscriber struct {
	ch    chan<- Event
	stats SubscriberStats
}

// Bus delivers events to every subscriber. A subscriber whose channel is
// full misses the event.
type Bus struct {
	mu             sync.RWMutex
	subscribers    map[string]*subscriber
	totalPublished uint64
	closed         bool
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]*subscriber)}
}

// Subscribe registers ch under id.
func (b *Bus) Subscribe(id string, ch chan<- Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return ErrSubscriberExists
	}
	if ch == nil {
		return ErrNilChannel
	}

	b.subscribers[id] = &subscriber{ch: ch}
	return nil
}

func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; !exists {
		return ErrSubscriberNotFound
	}
	delete(b.subscribers, id)
	return nil
}

// Publish stamps the event and offers it to every subscriber.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	atomic.AddUint64(&b.totalPublished, 1)

	for _, s := range b.subscribers {
		select {
		case s.ch <- e:
			atomic.AddUint64(&s.stats.Sent, 1)
		default:
			atomic.AddUint64(&s.stats.Dropped, 1)
		}
	}
}

func (b *Bus) Stats(id string) (SubscriberStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s, exists := b.subscribers[id]
	if !exists {
		return SubscriberStats{}, ErrSubscriberNotFound
	}
	return SubscriberStats{
		Sent:    atomic.LoadUint64(&s.stats.Sent),
		Dropped: atomic.LoadUint64(&s.stats.Dropped),
	}, nil
}

// Published returns the number of events accepted since creation.
func (b *Bus) Published() uint64 {
	return atomic.LoadUint64(&b.totalPublished)
}

// Close drops all subscribers; later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.subscribers = nil
}
