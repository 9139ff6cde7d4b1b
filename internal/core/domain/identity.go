package domain

import "time"

// Identity is the caller context resolved from a server-issued token.
// The zero value is Anonymous.
type Identity struct {
	Username  string
	Role      Role
	SessionID string
	ExpiresAt time.Time
}

// Anonymous is the identity of a caller without a valid token.
var Anonymous = Identity{}

// IsAuthenticated reports whether the identity came from a verified session.
func (i Identity) IsAuthenticated() bool {
	return i.Username != "" && i.SessionID != "" && i.Role.Valid()
}

// Can reports whether the identity satisfies the required role.
func (i Identity) Can(required Role) bool {
	return i.IsAuthenticated() && i.Role.Satisfies(required)
}

// IsSelf reports whether the identity owns the given (normalised) username.
func (i Identity) IsSelf(username string) bool {
	return i.IsAuthenticated() && i.Username == username
}

// Session is the server-side record behind an identity token.
type Session struct {
	ID        string
	Username  string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AuthResult is returned by a successful authentication.
type AuthResult struct {
	Token    string
	Identity Identity
}
