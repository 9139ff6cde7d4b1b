package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// TokenIssuer signs and verifies identity tokens. Verify checks signature,
// algorithm, issuer and expiry; it does not consult the session store.
type TokenIssuer interface {
	Issue(session domain.Session) (string, error)
	Verify(token string) (domain.Identity, error)
}

// PasswordHasher produces salted one-way hashes and verifies them in
// constant time.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	// NeedsRehash reports whether the hash was produced by a legacy
	// algorithm or outdated parameters.
	NeedsRehash(encodedHash string) bool
}

// AttemptLimiter throttles authentication attempts per key. Reserve counts
// an attempt before it is evaluated, so concurrent attempts cannot overrun
// the budget; Reset forgets the key after a successful attempt.
type AttemptLimiter interface {
	Reserve(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}
