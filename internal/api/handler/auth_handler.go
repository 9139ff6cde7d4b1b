package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/core/ports"
)

type AuthHandler struct {
	credentials ports.CredentialService
}

func NewAuthHandler(credentials ports.CredentialService) *AuthHandler {
	return &AuthHandler{credentials: credentials}
}

// Login authenticates a user and returns an identity token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      429   {object}  ErrorResponse
// @Router       /v1/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.credentials.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, loginResponse{
		Token:     res.Token,
		TokenType: "Bearer",
		ExpiresAt: res.Identity.ExpiresAt,
		Username:  res.Identity.Username,
		Role:      res.Identity.Role,
	})
}

// Logout revokes the caller's session.
//
// @Summary      Logout
// @Tags         auth
// @Security     BearerAuth
// @Success      204
// @Failure      401   {object}  ErrorResponse
// @Router       /v1/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	token, err := ctxToken(c)
	if err != nil {
		return err
	}
	if err := h.credentials.Logout(c.Request().Context(), token); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's own account.
//
// @Summary      Current user
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200   {object}  domain.PublicUserView
// @Failure      401   {object}  ErrorResponse
// @Router       /v1/auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	token, err := ctxToken(c)
	if err != nil {
		return err
	}
	username, _ := c.Get(CtxUsername).(string)

	view, err := h.credentials.GetUserDetails(c.Request().Context(), token, username)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}
