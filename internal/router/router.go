package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/football-squares/internal/config"
	"github.com/iliyamo/football-squares/internal/handler"
	"github.com/iliyamo/football-squares/internal/metrics"
	"github.com/iliyamo/football-squares/internal/middleware"
)

// RegisterRoutes registers the unauthenticated operational endpoints.
// db may be nil, in which case /readyz is not mounted.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, rec *metrics.Recorder) {
	e.GET("/healthz", handler.Health)
	if db != nil {
		e.GET("/readyz", handler.Ready(db))
	}
	if rec != nil {
		e.GET("/metrics", echo.WrapHandler(rec.Handler()))
	}
}

// RegisterAuth registers the session endpoints.  Register, login and
// refresh live under /v1/auth without a session; the rest need a JWT.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, rl echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", rl)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
	auth.POST("/auth/logout", a.Logout)
	auth.POST("/logout", a.Logout)
}

// Limits builds one rate limiter from cfg.  Without Redis it passes
// everything through.
func Limits(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	return middleware.NewTokenBucket(cfg, rdb)
}
