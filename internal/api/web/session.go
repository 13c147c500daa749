package web

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// sessionStore keeps opaque session tokens in memory until they expire.
type sessionStore struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu       sync.Mutex
	sessions map[string]time.Time
}

func newSessionStore(clock clockwork.Clock, ttl time.Duration) *sessionStore {
	return &sessionStore{
		clock:    clock,
		ttl:      ttl,
		sessions: make(map[string]time.Time),
	}
}

// create issues a new token.
func (s *sessionStore) create() string {
	token := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	s.sessions[token] = s.clock.Now().Add(s.ttl)

	return token
}

// valid reports whether token exists and has not expired.
func (s *sessionStore) valid(token string) bool {
	if token == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.sessions[token]
	if !ok {
		return false
	}

	if !s.clock.Now().Before(expiresAt) {
		delete(s.sessions, token)

		return false
	}

	return true
}

// revoke forgets token.
func (s *sessionStore) revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
}

// pruneLocked drops expired sessions. The caller holds mu.
func (s *sessionStore) pruneLocked() {
	now := s.clock.Now()

	for token, expiresAt := range s.sessions {
		if !now.Before(expiresAt) {
			delete(s.sessions, token)
		}
	}
}
