package domain

import (
	"errors"
	"testing"
	"time"
)

func TestRole_Satisfies(t *testing.T) {
	tests := []struct {
		role     Role
		required Role
		want     bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleUser, true},
		{RoleUser, RoleUser, true},
		{RoleUser, RoleAdmin, false},
		{Role("root"), RoleAdmin, false},
		{RoleAdmin, Role("root"), false},
		{Role(""), RoleUser, false},
	}
	for _, tt := range tests {
		if got := tt.role.Satisfies(tt.required); got != tt.want {
			t.Errorf("%q.Satisfies(%q) = %v, want %v", tt.role, tt.required, got, tt.want)
		}
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Admin ")
	if err != nil || r != RoleAdmin {
		t.Fatalf("expected admin, got %q (%v)", r, err)
	}
	if _, err := ParseRole("superuser"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestIdentity_Anonymous(t *testing.T) {
	if Anonymous.IsAuthenticated() {
		t.Fatalf("anonymous must not be authenticated")
	}
	if Anonymous.Can(RoleUser) {
		t.Fatalf("anonymous must not satisfy any role")
	}
	if Anonymous.IsSelf("") {
		t.Fatalf("anonymous must not own the empty username")
	}
}

func TestIdentity_Can(t *testing.T) {
	id := Identity{Username: "alice", Role: RoleUser, SessionID: "s1", ExpiresAt: time.Now().Add(time.Hour)}
	if !id.Can(RoleUser) {
		t.Fatalf("user should satisfy user")
	}
	if id.Can(RoleAdmin) {
		t.Fatalf("user should not satisfy admin")
	}
	if !id.IsSelf("alice") || id.IsSelf("bob") {
		t.Fatalf("unexpected IsSelf result")
	}
}

func TestUserAccount_ViewOmitsHash(t *testing.T) {
	u := &UserAccount{ID: "1", Username: "alice", PasswordHash: "$argon2id$...", Role: RoleUser}
	v := u.View()
	if v.Username != "alice" || v.Role != RoleUser || v.ID != "1" {
		t.Fatalf("unexpected view: %+v", v)
	}
}
