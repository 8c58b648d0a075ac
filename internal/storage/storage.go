package storage

import (
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/lehigh-university-libraries/imagegen/internal/models"
)

// DefaultMaxSessions bounds the store. Each session holds decoded images, so
// four 1024x1024 images cost about 16 MB.
const DefaultMaxSessions = 16

// SessionStore keeps the most recent generation sessions in memory for the
// web interface. Once full, adding a session evicts the oldest one.
type SessionStore struct {
	sessions map[string]*models.GenerationSession
	order    []string
	max      int
	mu       sync.RWMutex
}

func New() *SessionStore {
	return NewWithLimit(DefaultMaxSessions)
}

func NewWithLimit(max int) *SessionStore {
	if max < 1 {
		max = 1
	}
	return &SessionStore{
		sessions: make(map[string]*models.GenerationSession),
		max:      max,
	}
}

func (s *SessionStore) Get(sessionID string) (*models.GenerationSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	return session, exists
}

func (s *SessionStore) Set(sessionID string, session *models.GenerationSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sessionID]; !exists {
		s.order = append(s.order, sessionID)
	}
	s.sessions[sessionID] = session

	for len(s.order) > s.max {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.sessions, oldest)
		slog.Debug("Evicted session", "session", oldest)
	}
}

// List returns every session, newest first
func (s *SessionStore) List() []*models.GenerationSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.GenerationSession, 0, len(s.sessions))
	for _, v := range s.sessions {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (s *SessionStore) Delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.sessions[sessionID]
	if !exists {
		return false
	}
	delete(s.sessions, sessionID)
	if i := slices.Index(s.order, sessionID); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return true
}
