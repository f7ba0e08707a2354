package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/football-squares/internal/handler"
	"github.com/iliyamo/football-squares/internal/middleware"
)

// RegisterGames registers the game endpoints under /v1.  Every route
// needs a JWT; who may do what inside a game is decided by the engine
// from the caller's capabilities.  rl throttles the routes that take a
// game lock or a password; cache fronts the public join-code lookup.
func RegisterGames(e *echo.Echo, h *handler.GameHandler, f *handler.FeedHandler, jwtSecret string, rl, cache echo.MiddlewareFunc) {
	e.GET("/v1/join/:code", h.Preview, rl, cache)

	g := e.Group("/v1/games", middleware.JWTAuth(jwtSecret))
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Patch)
	g.DELETE("/:id", h.Delete)

	// squares
	g.GET("/:id/squares", h.Squares)
	g.POST("/:id/squares", h.Reserve, rl)
	g.DELETE("/:id/squares", h.Release)
	g.POST("/:id/confirm", h.Confirm)

	// roster
	g.GET("/:id/players", h.Players)
	g.PATCH("/:id/players", h.PatchPlayer)
	g.POST("/:id/invites", h.Invite, rl)

	// access
	g.POST("/:id/join", h.Join, rl)
	g.GET("/:id/access", h.Access)
	g.POST("/:id/access", h.GrantAccess, rl)
	g.POST("/:id/password", h.SetPassword)

	// live feed
	g.GET("/:id/stream", f.Stream)
	g.GET("/:id/ws", f.WebSocket)
}
