package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/99minutos/identity-service/internal/core/domain"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newSession(id, username string) domain.Session {
	now := time.Now()
	return domain.Session{ID: id, Username: username, Role: domain.RoleUser, IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
}

func TestSessionStore_CreateActiveRevoke(t *testing.T) {
	_, client := newTestClient(t)
	s := NewSessionStore(client)
	ctx := context.Background()

	if err := s.Create(ctx, newSession("s1", "alice")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ok, err := s.Active(ctx, "s1"); err != nil || !ok {
		t.Fatalf("expected active session, got %v (%v)", ok, err)
	}

	if err := s.Revoke(ctx, "s1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if ok, _ := s.Active(ctx, "s1"); ok {
		t.Fatalf("revoked session must not be active")
	}
	if err := s.Revoke(ctx, "s1"); err != nil {
		t.Fatalf("second revoke should be a no-op, got %v", err)
	}
}

func TestSessionStore_ExpiresWithToken(t *testing.T) {
	mr, client := newTestClient(t)
	s := NewSessionStore(client)
	ctx := context.Background()

	_ = s.Create(ctx, newSession("s1", "alice"))
	mr.FastForward(time.Hour + time.Second)

	if ok, _ := s.Active(ctx, "s1"); ok {
		t.Fatalf("expected session to expire with its token")
	}
}

func TestSessionStore_RejectsExpiredSession(t *testing.T) {
	_, client := newTestClient(t)
	s := NewSessionStore(client)

	past := newSession("s1", "alice")
	past.ExpiresAt = time.Now().Add(-time.Minute)
	if err := s.Create(context.Background(), past); err == nil {
		t.Fatalf("expected error for already expired session")
	}
}

func TestSessionStore_RevokeAllForUser(t *testing.T) {
	_, client := newTestClient(t)
	s := NewSessionStore(client)
	ctx := context.Background()

	for _, id := range []string{"a1", "a2", "a3"} {
		_ = s.Create(ctx, newSession(id, "alice"))
	}
	_ = s.Create(ctx, newSession("b1", "bob"))

	n, err := s.RevokeAllForUser(ctx, "alice", "a3")
	if err != nil {
		t.Fatalf("RevokeAllForUser: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 revoked, got %d", n)
	}
	for id, want := range map[string]bool{"a1": false, "a2": false, "a3": true, "b1": true} {
		if ok, _ := s.Active(ctx, id); ok != want {
			t.Errorf("session %s active=%v, want %v", id, ok, want)
		}
	}

	if n, _ := s.RevokeAllForUser(ctx, "nobody", ""); n != 0 {
		t.Fatalf("expected 0 revoked for unknown user, got %d", n)
	}
}
