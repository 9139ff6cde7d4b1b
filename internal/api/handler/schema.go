package handler

import (
	"time"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// Request bodies only check shape here; password strength and username rules
// are enforced by the credential service.

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=1024"`
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=1024"`
	Role     string `json:"role" validate:"required,oneof=admin user"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required,max=1024"`
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin user"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	TokenType string      `json:"token_type"`
	ExpiresAt time.Time   `json:"expires_at"`
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
}

type listUsersResponse struct {
	Users []domain.PublicUserView `json:"users"`
	Count int                     `json:"count"`
}

// ErrorResponse documents the error envelope rendered by the API error handler.
type ErrorResponse struct {
	Error string `json:"error"`
}
