package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/football-squares/internal/grid"
)

// TokenPurger deletes expired refresh tokens.
type TokenPurger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// CronHandler exposes the sweeper passes to an external scheduler.  The
// routes sit behind middleware.RequireSecret.
type CronHandler struct {
	Sweeper *grid.Sweeper
	Tokens  TokenPurger
}

func NewCronHandler(s *grid.Sweeper, tokens TokenPurger) *CronHandler {
	if s == nil {
		panic("nil sweeper passed to NewCronHandler")
	}
	return &CronHandler{Sweeper: s, Tokens: tokens}
}

// ReleaseExpired handles /internal/cron/release-expired.
func (h *CronHandler) ReleaseExpired(c echo.Context) error {
	rep, err := h.Sweeper.ReleaseExpired(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rep)
}

// SendReminders handles /internal/cron/send-reminders.
func (h *CronHandler) SendReminders(c echo.Context) error {
	rep, err := h.Sweeper.SendReminders(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rep)
}

// PurgeTokens handles /internal/cron/purge-tokens.
func (h *CronHandler) PurgeTokens(c echo.Context) error {
	if h.Tokens == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	}
	n, err := h.Tokens.PurgeExpired(c.Request().Context(), time.Now().UTC())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"purged": n})
}

// BillingHandler receives callbacks from the billing collaborator.
type BillingHandler struct {
	Engine *grid.Engine
}

func NewBillingHandler(engine *grid.Engine) *BillingHandler {
	if engine == nil {
		panic("nil engine passed to NewBillingHandler")
	}
	return &BillingHandler{Engine: engine}
}

// Activate handles POST /internal/billing/games/:id/activate.
func (h *BillingHandler) Activate(c echo.Context) error {
	g, err := h.Engine.ActivateGame(c.Request().Context(), gameID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"game": newGameResp(g)})
}
