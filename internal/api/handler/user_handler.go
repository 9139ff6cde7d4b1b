package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// UserHandler handles HTTP requests for account management. Every call
// forwards the caller's token; the service decides what the caller may do.
type UserHandler struct {
	credentials ports.CredentialService
}

func NewUserHandler(credentials ports.CredentialService) *UserHandler {
	return &UserHandler{credentials: credentials}
}

// Create registers a new account.
//
// @Summary      Create user
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      createUserRequest  true  "New account"
// @Success      201   {object}  domain.PublicUserView
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Router       /v1/users [post]
func (h *UserHandler) Create(c echo.Context) error {
	token, err := ctxToken(c)
	if err != nil {
		return err
	}
	var req createUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	view, err := h.credentials.CreateUser(c.Request().Context(), token, req.Username, req.Password, domain.Role(req.Role))
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderLocation, "/v1/users/"+view.Username)
	return c.JSON(http.StatusCreated, view)
}

// List returns every account.
//
// @Summary      List users
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Success      200   {object}  listUsersResponse
// @Failure      403   {object}  ErrorResponse
// @Router       /v1/users [get]
func (h *UserHandler) List(c echo.Context) error {
	token, err := ctxToken(c)
	if err != nil {
		return err
	}
	users, err := h.credentials.ListUsers(c.Request().Context(), token)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listUsersResponse{Users: users, Count: len(users)})
}

// Get returns one account to its owner or an admin.
//
// @Summary      Get user
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        username  path      string  true  "Username"
// @Success      200       {object}  domain.PublicUserView
// @Failure      403       {object}  ErrorResponse
// @Failure      404       {object}  ErrorResponse
// @Router       /v1/users/{username} [get]
func (h *UserHandler) Get(c echo.Context) error {
	token, err := ctxToken(c)
	if err != nil {
		return err
	}
	view, err := h.credentials.GetUserDetails(c.Request().Context(), token, c.Param("username"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// ResetPassword replaces an account password.
//
// @Summary      Reset password
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Param        username  path      string                true  "Username"
// @Param        body      body      resetPasswordRequest  true  "New password"
// @Success      204
// @Failure      400       {object}  ErrorResponse
// @Failure      403       {object}  ErrorResponse
// @Failure      404       {object}  ErrorResponse
// @Router       /v1/users/{username}/password [put]
func (h *UserHandler) ResetPassword(c echo.Context) error {
	token, err := ctxToken(c)
	if err != nil {
		return err
	}
	var req resetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.credentials.ResetPassword(c.Request().Context(), token, c.Param("username"), req.Password); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ChangeRole sets the role of an account.
//
// @Summary      Change role
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        username  path      string             true  "Username"
// @Param        body      body      changeRoleRequest  true  "New role"
// @Success      200       {object}  domain.PublicUserView
// @Failure      400       {object}  ErrorResponse
// @Failure      403       {object}  ErrorResponse
// @Failure      404       {object}  ErrorResponse
// @Router       /v1/users/{username}/role [put]
func (h *UserHandler) ChangeRole(c echo.Context) error {
	token, err := ctxToken(c)
	if err != nil {
		return err
	}
	var req changeRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	view, err := h.credentials.ChangeRole(c.Request().Context(), token, c.Param("username"), domain.Role(req.Role))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// Delete removes an account.
//
// @Summary      Delete user
// @Tags         users
// @Security     BearerAuth
// @Param        username  path  string  true  "Username"
// @Success      204
// @Failure      403       {object}  ErrorResponse
// @Failure      404       {object}  ErrorResponse
// @Router       /v1/users/{username} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	token, err := ctxToken(c)
	if err != nil {
		return err
	}
	if err := h.credentials.DeleteUser(c.Request().Context(), token, c.Param("username")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
