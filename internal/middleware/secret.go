package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireSecret guards internal endpoints (cron, billing) with a shared
// secret sent as "Authorization: Bearer <secret>" or in the named header.
// An empty secret disables the routes entirely.
func RequireSecret(header, secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": "endpoint disabled"})
			}
			got := c.Request().Header.Get(header)
			if auth := c.Request().Header.Get("Authorization"); got == "" && strings.HasPrefix(auth, "Bearer ") {
				got = strings.TrimPrefix(auth, "Bearer ")
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid shared secret"})
			}
			return next(c)
		}
	}
}
