package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// CredentialService is the credential store and authorizer exposed to the
// request-handling layer. Every actorToken is a token previously returned by
// Authenticate; the actor's role is always taken from the server-side
// session, never from the caller.
type CredentialService interface {
	Authenticate(ctx context.Context, username, password string) (*domain.AuthResult, error)
	Identify(ctx context.Context, token string) (domain.Identity, error)
	IsAuthorized(ctx context.Context, token string, required domain.Role) bool
	Logout(ctx context.Context, token string) error

	CreateUser(ctx context.Context, actorToken, username, password string, role domain.Role) (*domain.PublicUserView, error)
	ResetPassword(ctx context.Context, actorToken, username, newPassword string) error
	ChangeRole(ctx context.Context, actorToken, username string, role domain.Role) (*domain.PublicUserView, error)
	DeleteUser(ctx context.Context, actorToken, username string) error
	GetUserDetails(ctx context.Context, actorToken, username string) (*domain.PublicUserView, error)
	ListUsers(ctx context.Context, actorToken string) ([]domain.PublicUserView, error)
}
