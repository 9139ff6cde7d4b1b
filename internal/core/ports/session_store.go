package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// SessionStore tracks which issued identity tokens are still honoured.
type SessionStore interface {
	Create(ctx context.Context, session domain.Session) error
	// Active reports whether the session exists and has not expired.
	Active(ctx context.Context, id string) (bool, error)
	Revoke(ctx context.Context, id string) error
	// RevokeAllForUser revokes every session of username except exceptID
	// (which may be empty) and returns how many were revoked.
	RevokeAllForUser(ctx context.Context, username, exceptID string) (int, error)
}
