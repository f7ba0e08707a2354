package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/football-squares/internal/grid"
	"github.com/iliyamo/football-squares/internal/model"
)

type reserveReq struct {
	Cells []model.Cell `json:"cells" validate:"required,min=1,max=100"`
}

type confirmReq struct {
	SquareIDs []uint64 `json:"square_ids" validate:"required,min=1,max=100"`
}

// Squares handles GET /v1/games/:id/squares.
func (h *GameHandler) Squares(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return nil
	}
	v, err := h.Engine.ViewGame(c.Request().Context(), gameID(c), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":      v.Game.Status,
		"row_numbers": v.Game.RowNumbers,
		"col_numbers": v.Game.ColNumbers,
		"squares":     grid.NewSquareViews(v.Squares),
	})
}

// Reserve handles POST /v1/games/:id/squares.  All requested cells are
// claimed or none are.
func (h *GameHandler) Reserve(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return nil
	}
	var req reserveReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	squares, err := h.Engine.ReserveSquares(c.Request().Context(), gameID(c), uid, req.Cells)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"squares": grid.NewSquareViews(squares)})
}

// Release handles DELETE /v1/games/:id/squares: the caller drops their
// own unpaid reservations.
func (h *GameHandler) Release(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return nil
	}
	n, err := h.Engine.ReleaseOwnSquares(c.Request().Context(), gameID(c), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": n})
}

// Confirm handles POST /v1/games/:id/confirm.
func (h *GameHandler) Confirm(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return nil
	}
	var req confirmReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	n, err := h.Engine.ConfirmSquares(c.Request().Context(), gameID(c), uid, req.SquareIDs)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"confirmed": n})
}
