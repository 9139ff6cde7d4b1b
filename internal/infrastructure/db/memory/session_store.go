package memory

import (
	"context"
	"sync"
	"time"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// SessionStore keeps active sessions in memory. Expired sessions are dropped
// lazily when they are looked up or when the owner's sessions are swept.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	byUser   map[string]map[string]struct{}
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.Session),
		byUser:   make(map[string]map[string]struct{}),
		now:      time.Now,
	}
}

func (s *SessionStore) Create(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(session.Username)
	s.sessions[session.ID] = session
	ids, ok := s.byUser[session.Username]
	if !ok {
		ids = make(map[string]struct{})
		s.byUser[session.Username] = ids
	}
	ids[session.ID] = struct{}{}
	return nil
}

func (s *SessionStore) Active(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !s.now().Before(sess.ExpiresAt) {
		s.mu.Lock()
		s.removeLocked(sess)
		s.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (s *SessionStore) Revoke(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		s.removeLocked(sess)
	}
	return nil
}

func (s *SessionStore) RevokeAllForUser(_ context.Context, username, exceptID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id := range s.byUser[username] {
		if id == exceptID {
			continue
		}
		s.removeLocked(s.sessions[id])
		n++
	}
	return n, nil
}

// sweepLocked drops expired sessions of username. Caller holds mu.
func (s *SessionStore) sweepLocked(username string) {
	now := s.now()
	for id := range s.byUser[username] {
		if sess := s.sessions[id]; !now.Before(sess.ExpiresAt) {
			s.removeLocked(sess)
		}
	}
}

func (s *SessionStore) removeLocked(sess domain.Session) {
	delete(s.sessions, sess.ID)
	if ids, ok := s.byUser[sess.Username]; ok {
		delete(ids, sess.ID)
		if len(ids) == 0 {
			delete(s.byUser, sess.Username)
		}
	}
}
