package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/api/handler"
	"github.com/99minutos/identity-service/internal/core/domain"
)

// RBAC rejects callers whose role does not satisfy required. It must run
// after Auth. It is an early exit only; the service checks again.
func RBAC(required domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(handler.CtxRole).(string)
			if !domain.Role(role).Satisfies(required) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": deniedMessage})
			}
			return next(c)
		}
	}
}
