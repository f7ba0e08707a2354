package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/football-squares/internal/model"
)

type playerActionReq struct {
	Action string `json:"action" validate:"required,oneof=setRole block unblock releaseSquares removePlayer"`
	UserID uint64 `json:"user_id" validate:"required"`
	Role   string `json:"role"`
}

// Players handles GET /v1/games/:id/players.
func (h *GameHandler) Players(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return nil
	}
	players, err := h.Engine.ListPlayers(c.Request().Context(), gameID(c), uid)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]playerResp, 0, len(players))
	for _, p := range players {
		out = append(out, newPlayerResp(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"players": out})
}

// PatchPlayer handles PATCH /v1/games/:id/players.
func (h *GameHandler) PatchPlayer(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return nil
	}
	var req playerActionReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	ctx := c.Request().Context()
	id := gameID(c)

	var (
		released int64
		err      error
	)
	switch req.Action {
	case "setRole":
		err = h.Engine.SetPlayerRole(ctx, id, uid, req.UserID, model.PlayerRole(strings.ToUpper(strings.TrimSpace(req.Role))))
	case "block":
		err = h.Engine.SetPlayerBlocked(ctx, id, uid, req.UserID, true)
	case "unblock":
		err = h.Engine.SetPlayerBlocked(ctx, id, uid, req.UserID, false)
	case "releaseSquares":
		released, err = h.Engine.ReleasePlayerSquares(ctx, id, uid, req.UserID)
	case "removePlayer":
		released, err = h.Engine.RemovePlayer(ctx, id, uid, req.UserID)
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"action": req.Action, "user_id": req.UserID, "released": released})
}

type inviteReq struct {
	Emails []string `json:"emails" validate:"required,min=1,max=50"`
}

// Invite handles POST /v1/games/:id/invites.
func (h *GameHandler) Invite(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return nil
	}
	var req inviteReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	n, err := h.Engine.InvitePlayers(c.Request().Context(), gameID(c), uid, req.Emails)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"sent": n})
}
