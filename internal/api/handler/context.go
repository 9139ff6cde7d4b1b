package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Context keys set by the Auth middleware.
const (
	CtxToken    = "token"
	CtxUsername = "username"
	CtxRole     = "role"
)

// ctxToken returns the bearer token injected by the Auth middleware. Its
// presence proves the middleware ran; the service still re-checks it.
func ctxToken(c echo.Context) (string, error) {
	token, _ := c.Get(CtxToken).(string)
	if token == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
	}
	return token, nil
}
