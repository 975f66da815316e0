package storage

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/photobooth/internal/models"
)

// ErrSessionNotFound is returned when a write targets an unknown session.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore holds one photo list per booth session. Reads return copies;
// the last writer wins.
type SessionStore struct {
	sessions map[string]*models.BoothSession
	mu       sync.RWMutex
	now      func() time.Time
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*models.BoothSession),
		now:      time.Now,
	}
}

// Create starts an empty session for the given frame.
func (s *SessionStore) Create(frameID int) *models.BoothSession {
	now := s.now()
	session := &models.BoothSession{
		ID:        uuid.NewString(),
		FrameID:   frameID,
		Photos:    []models.Photo{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return session.Clone()
}

func (s *SessionStore) Get(sessionID string) (*models.BoothSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, false
	}
	return session.Clone(), true
}

// SetPhotos replaces the session's photo list wholesale and marks it
// finalized.
func (s *SessionStore) SetPhotos(sessionID string, photos []models.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, exists := s.sessions[sessionID]
	if !exists {
		return ErrSessionNotFound
	}
	session.Photos = slices.Clone(photos)
	session.Finalized = true
	session.UpdatedAt = s.now()
	return nil
}

// ClearPhotos empties the session's photo list.
func (s *SessionStore) ClearPhotos(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, exists := s.sessions[sessionID]
	if !exists {
		return ErrSessionNotFound
	}
	session.Photos = []models.Photo{}
	session.Finalized = false
	session.UpdatedAt = s.now()
	return nil
}

// Touch refreshes the idle timer of a session.
func (s *SessionStore) Touch(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, exists := s.sessions[sessionID]; exists {
		session.UpdatedAt = s.now()
	}
}

func (s *SessionStore) GetAll() map[string]*models.BoothSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*models.BoothSession, len(s.sessions))
	for k, v := range s.sessions {
		result[k] = v.Clone()
	}
	return result
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Prune deletes sessions untouched for longer than maxIdle and returns
// their ids.
func (s *SessionStore) Prune(maxIdle time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxIdle)
	var pruned []string
	for id, session := range s.sessions {
		if session.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			pruned = append(pruned, id)
		}
	}
	slices.Sort(pruned)
	return pruned
}
