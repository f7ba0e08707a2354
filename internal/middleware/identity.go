package middleware

// identity.go holds the accessors for the per-request values stored by
// JWTAuth and RequestLogger.  Handlers and the rate limiter share them.

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	userIDKey = "user_id"
	loggerKey = "logger"
)

// UserID returns the authenticated user, or false on public routes.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(userIDKey).(uint64)
	return id, ok && id != 0
}

// SetUserID stores an authenticated user; tests use it to skip JWTAuth.
func SetUserID(c echo.Context, id uint64) { c.Set(userIDKey, id) }

// Logger returns the request logger, or a no-op logger when RequestLogger
// is not installed.
func Logger(c echo.Context) *zap.Logger {
	if lg, ok := c.Get(loggerKey).(*zap.Logger); ok && lg != nil {
		return lg
	}
	return zap.NewNop()
}

// SetLogger stores the request logger.
func SetLogger(c echo.Context, lg *zap.Logger) { c.Set(loggerKey, lg) }

// userKey is the user part of rate limit keys.  Anonymous callers are
// keyed by address so they do not share one bucket.
func userKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon-" + c.RealIP()
}
