package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"lan-gateway/gateway/internal/backend"
)

// session binds an opaque id handed to the browser to the listener's backend
// credentials.
type session struct {
	ID          string
	Credentials backend.Credentials
	CreatedAt   time.Time
}

// sessionStore belongs to exactly one restricted listener.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]session)}
}

func (s *sessionStore) mint(creds backend.Credentials) session {
	sess := session{
		ID:          uuid.NewString(),
		Credentials: creds,
		CreatedAt:   time.Now(),
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

func (s *sessionStore) lookup(id string) (session, bool) {
	if id == "" {
		return session{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *sessionStore) clear() {
	s.mu.Lock()
	s.sessions = make(map[string]session)
	s.mu.Unlock()
}

func (s *sessionStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
