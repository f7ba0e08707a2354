package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/football-squares/internal/grid"
	"github.com/iliyamo/football-squares/internal/middleware"
)

const (
	defaultMaxSquares       = 10
	defaultReservationHours = 24
)

// GameHandler serves the game, square, roster and access endpoints on top
// of the grid engine.
type GameHandler struct {
	Engine *grid.Engine
}

// NewGameHandler panics if engine is nil.
func NewGameHandler(engine *grid.Engine) *GameHandler {
	if engine == nil {
		panic("nil engine passed to NewGameHandler")
	}
	return &GameHandler{Engine: engine}
}

// currentUser reads the authenticated user; ok is false after a 401 has
// been written.
func currentUser(c echo.Context) (uint64, bool) {
	uid, ok := middleware.UserID(c)
	if !ok || uid == 0 {
		_ = unauthorized(c, "authentication required")
		return 0, false
	}
	return uid, true
}

func gameID(c echo.Context) string { return strings.TrimSpace(c.Param("id")) }

type createGameReq struct {
	Name                string     `json:"name" validate:"required,min=3,max=100"`
	TeamHome            string     `json:"team_home" validate:"required,max=60"`
	TeamAway            string     `json:"team_away" validate:"required,max=60"`
	GameDate            time.Time  `json:"game_date" validate:"required"`
	PricePerSquareCents *uint32    `json:"price_per_square_cents"`
	Payouts             payoutsDTO `json:"payouts"`
	MaxSquaresPerPlayer int        `json:"max_squares_per_player" validate:"omitempty,gte=1,lte=100"`
	ReservationHours    int        `json:"reservation_hours" validate:"omitempty,gte=1,lte=168"`
	AutoReleaseEnabled  *bool      `json:"auto_release_enabled"`
}

// Create handles POST /v1/games.
func (h *GameHandler) Create(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return nil
	}
	var req createGameReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	in := grid.GameInput{
		Name:                req.Name,
		TeamHome:            req.TeamHome,
		TeamAway:            req.TeamAway,
		GameDate:            req.GameDate,
		PricePerSquareCents: req.PricePerSquareCents,
		Payouts:             req.Payouts.model(),
		MaxSquaresPerPlayer: req.MaxSquaresPerPlayer,
		ReservationHours:    req.ReservationHours,
		AutoReleaseEnabled:  true,
	}
	if in.MaxSquaresPerPlayer == 0 {
		in.MaxSquaresPerPlayer = defaultMaxSquares
	}
	if in.ReservationHours == 0 {
		in.ReservationHours = defaultReservationHours
	}
	if req.AutoReleaseEnabled != nil {
		in.AutoReleaseEnabled = *req.AutoReleaseEnabled
	}
	g, err := h.Engine.CreateGame(c.Request().Context(), uid, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, newGameResp(g))
}

// List handles GET /v1/games: games the caller manages or plays in.
func (h *GameHandler) List(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return nil
	}
	games, err := h.Engine.ListGames(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]gameSummaryResp, 0, len(games))
	for i := range games {
		s := games[i]
		out = append(out, gameSummaryResp{
			gameResp:       newGameResp(&s.Game),
			ManagerName:    s.ManagerName,
			PlayerCount:    s.PlayerCount,
			ClaimedCount:   s.ClaimedCount,
			ConfirmedCount: s.ConfirmedCount,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"games": out})
}

// Get handles GET /v1/games/:id.
func (h *GameHandler) Get(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return nil
	}
	v, err := h.Engine.ViewGame(c.Request().Context(), gameID(c), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"game":         newGameResp(v.Game),
		"capabilities": newCapsResp(v.Caps),
		"squares":      grid.NewSquareViews(v.Squares),
	})
}

type patchGameReq struct {
	Action              string  `json:"action" validate:"omitempty,oneof=lock start complete cancel"`
	Name                *string `json:"name"`
	PricePerSquareCents *uint32 `json:"price_per_square_cents"`
	ClearPrice          bool    `json:"clear_price"`
	MaxSquaresPerPlayer *int    `json:"max_squares_per_player"`
	AutoReleaseEnabled  *bool   `json:"auto_release_enabled"`
}

// Patch handles PATCH /v1/games/:id.  With an action it moves the game
// through its lifecycle; otherwise it edits settings.
func (h *GameHandler) Patch(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return nil
	}
	var req patchGameReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	ctx := c.Request().Context()
	id := gameID(c)

	switch req.Action {
	case "":
	case grid.ActionLock:
		res, err := h.Engine.LockGrid(ctx, id, uid)
		if err != nil {
			return writeError(c, err)
		}
		g, err := h.Engine.Store().GetGame(ctx, id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"game": newGameResp(g), "lock": newLockResp(res)})
	default:
		g, err := h.Engine.TransitionGame(ctx, id, uid, req.Action)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"game": newGameResp(g)})
	}

	g, err := h.Engine.UpdateGame(ctx, id, uid, grid.GamePatch{
		Name:                req.Name,
		PricePerSquareCents: req.PricePerSquareCents,
		ClearPrice:          req.ClearPrice,
		MaxSquaresPerPlayer: req.MaxSquaresPerPlayer,
		AutoReleaseEnabled:  req.AutoReleaseEnabled,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"game": newGameResp(g)})
}

// Delete handles DELETE /v1/games/:id.
func (h *GameHandler) Delete(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return nil
	}
	if err := h.Engine.DeleteGame(c.Request().Context(), gameID(c), uid); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Preview handles GET /v1/join/:code.  It is public and shows just enough
// of a game to decide whether to join.
func (h *GameHandler) Preview(c echo.Context) error {
	g, err := h.Engine.ResolveEntryCode(c.Request().Context(), c.Param("code"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":                 g.ID,
		"name":               g.Name,
		"team_home":          g.TeamHome,
		"team_away":          g.TeamAway,
		"game_date":          g.GameDate,
		"status":             g.Status,
		"password_protected": g.PasswordProtected(),
	})
}
