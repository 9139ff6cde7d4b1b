package ports

import (
	"context"
	"time"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// UserRepository defines persistence for accounts. Implementations return
// copies, never references to stored records.
type UserRepository interface {
	// Create inserts the account. The uniqueness check and the insert are one
	// atomic step; a taken username yields domain.ErrConflict.
	Create(ctx context.Context, user *domain.UserAccount) error
	FindByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	// UpdatePasswordHash replaces the stored hash. When expectedHash is
	// non-empty the write only happens if the current hash still equals it,
	// otherwise domain.ErrConflict is returned.
	UpdatePasswordHash(ctx context.Context, username, expectedHash, newHash string, at time.Time) error
	UpdateRole(ctx context.Context, username string, role domain.Role, at time.Time) error
	Delete(ctx context.Context, username string) error
	// List returns every account ordered by username.
	List(ctx context.Context) ([]*domain.UserAccount, error)
	CountByRole(ctx context.Context, role domain.Role) (int64, error)
}
