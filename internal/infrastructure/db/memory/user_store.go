// Package memory holds the in-process backends. Each store is an explicitly
// owned instance guarded by its own lock; nothing here is package-level state.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// UserStore is a lock-guarded account table. Records are copied on the way in
// and on the way out so callers never alias stored state.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*domain.UserAccount
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*domain.UserAccount)}
}

func cloneUser(u *domain.UserAccount) *domain.UserAccount {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Create checks uniqueness and inserts under a single write lock.
func (s *UserStore) Create(_ context.Context, user *domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return domain.ErrConflict
	}
	s.users[user.Username] = cloneUser(user)
	return nil
}

func (s *UserStore) FindByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *UserStore) UpdatePasswordHash(_ context.Context, username, expectedHash, newHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return domain.ErrNotFound
	}
	if expectedHash != "" && u.PasswordHash != expectedHash {
		return domain.ErrConflict
	}
	u.PasswordHash = newHash
	u.UpdatedAt = at
	return nil
}

func (s *UserStore) UpdateRole(_ context.Context, username string, role domain.Role, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return domain.ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = at
	return nil
}

func (s *UserStore) Delete(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; !ok {
		return domain.ErrNotFound
	}
	delete(s.users, username)
	return nil
}

func (s *UserStore) List(_ context.Context) ([]*domain.UserAccount, error) {
	s.mu.RLock()
	out := make([]*domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, cloneUser(u))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *UserStore) CountByRole(_ context.Context, role domain.Role) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, u := range s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}
