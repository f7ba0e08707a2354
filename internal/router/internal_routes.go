package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/football-squares/internal/handler"
	"github.com/iliyamo/football-squares/internal/middleware"
)

// RegisterCron mounts the scheduler entry points.  They answer 404 until
// a secret is configured.
func RegisterCron(e *echo.Echo, h *handler.CronHandler, secret string) {
	g := e.Group("/internal/cron", middleware.RequireSecret("X-Cron-Secret", secret))
	for _, m := range []string{"GET", "POST"} {
		g.Add(m, "/release-expired", h.ReleaseExpired)
		g.Add(m, "/send-reminders", h.SendReminders)
		g.Add(m, "/purge-tokens", h.PurgeTokens)
	}
}

// RegisterBilling mounts the billing collaborator's callbacks.
func RegisterBilling(e *echo.Echo, h *handler.BillingHandler, secret string) {
	g := e.Group("/internal/billing", middleware.RequireSecret("X-Billing-Secret", secret))
	g.POST("/games/:id/activate", h.Activate)
}
