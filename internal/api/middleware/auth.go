package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/api/handler"
	"github.com/99minutos/identity-service/internal/core/domain"
)

// deniedMessage matches the body the API error handler uses for 401 and 403.
const deniedMessage = "access denied"

// Identifier resolves a bearer token into the caller identity.
type Identifier interface {
	Identify(ctx context.Context, token string) (domain.Identity, error)
}

// Auth resolves the bearer token against the session store and injects the
// token, username and role into the echo context.
func Auth(ids Identifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, deniedMessage)
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, deniedMessage)
			}
			token := strings.TrimSpace(parts[1])

			id, err := ids.Identify(c.Request().Context(), token)
			if errors.Is(err, domain.ErrForbidden) {
				return echo.NewHTTPError(http.StatusUnauthorized, deniedMessage)
			}
			if err != nil {
				return err
			}

			c.Set(handler.CtxToken, token)
			c.Set(handler.CtxUsername, id.Username)
			c.Set(handler.CtxRole, string(id.Role))

			return next(c)
		}
	}
}
