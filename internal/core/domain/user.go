package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is one of the closed set of account roles.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Satisfies reports whether a holder of r may perform an action that requires
// the given role. Admin satisfies every known role; unknown roles never match.
func (r Role) Satisfies(required Role) bool {
	if !r.Valid() || !required.Valid() {
		return false
	}
	return r == RoleAdmin || r == required
}

// ParseRole converts raw input into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: role must be one of: admin user", ErrInvalidInput)
	}
	return r, nil
}

// UserAccount is a stored account. PasswordHash is always a KDF output,
// never raw input.
type UserAccount struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// View returns the externally visible projection of the account.
func (u *UserAccount) View() PublicUserView {
	return PublicUserView{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// PublicUserView is an account without its password hash.
type PublicUserView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
