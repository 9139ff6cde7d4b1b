package memory

import (
	"context"
	"testing"
	"time"

	"github.com/99minutos/identity-service/internal/core/domain"
)

func session(id, username string, ttl time.Duration) domain.Session {
	now := time.Now()
	return domain.Session{ID: id, Username: username, Role: domain.RoleUser, IssuedAt: now, ExpiresAt: now.Add(ttl)}
}

func TestSessionStore_Lifecycle(t *testing.T) {
	s := NewSessionStore()
	ctx := context.Background()

	_ = s.Create(ctx, session("s1", "alice", time.Hour))
	if ok, _ := s.Active(ctx, "s1"); !ok {
		t.Fatalf("expected s1 active")
	}
	if ok, _ := s.Active(ctx, "unknown"); ok {
		t.Fatalf("unknown session must not be active")
	}

	_ = s.Revoke(ctx, "s1")
	if ok, _ := s.Active(ctx, "s1"); ok {
		t.Fatalf("revoked session must not be active")
	}
	if err := s.Revoke(ctx, "s1"); err != nil {
		t.Fatalf("revoking twice should be a no-op, got %v", err)
	}
}

func TestSessionStore_Expiry(t *testing.T) {
	s := NewSessionStore()
	ctx := context.Background()
	now := time.Now()
	s.now = func() time.Time { return now }

	_ = s.Create(ctx, domain.Session{ID: "s1", Username: "alice", IssuedAt: now, ExpiresAt: now.Add(time.Minute)})
	if ok, _ := s.Active(ctx, "s1"); !ok {
		t.Fatalf("expected active before expiry")
	}

	s.now = func() time.Time { return now.Add(time.Minute) }
	if ok, _ := s.Active(ctx, "s1"); ok {
		t.Fatalf("expected inactive at expiry")
	}
	if _, ok := s.byUser["alice"]; ok {
		t.Fatalf("expired session should be removed from the user index")
	}
}

func TestSessionStore_RevokeAllForUser(t *testing.T) {
	s := NewSessionStore()
	ctx := context.Background()

	_ = s.Create(ctx, session("a1", "alice", time.Hour))
	_ = s.Create(ctx, session("a2", "alice", time.Hour))
	_ = s.Create(ctx, session("a3", "alice", time.Hour))
	_ = s.Create(ctx, session("b1", "bob", time.Hour))

	n, err := s.RevokeAllForUser(ctx, "alice", "a2")
	if err != nil {
		t.Fatalf("RevokeAllForUser: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 revoked, got %d", n)
	}
	if ok, _ := s.Active(ctx, "a2"); !ok {
		t.Fatalf("excepted session should survive")
	}
	if ok, _ := s.Active(ctx, "a1"); ok {
		t.Fatalf("a1 should be revoked")
	}
	if ok, _ := s.Active(ctx, "b1"); !ok {
		t.Fatalf("other users' sessions must survive")
	}

	n, _ = s.RevokeAllForUser(ctx, "alice", "")
	if n != 1 {
		t.Fatalf("expected 1 revoked, got %d", n)
	}
}
