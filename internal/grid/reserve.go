package grid

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/iliyamo/football-squares/internal/model"
)

// normalizeCells validates the requested cells, collapses duplicates and
// sorts them row-major so every request touches rows in the same order.
func normalizeCells(cells []model.Cell) ([]model.Cell, error) {
	if len(cells) == 0 {
		return nil, invalid("at least one square must be requested")
	}
	seen := make(map[model.Cell]struct{}, len(cells))
	out := make([]model.Cell, 0, len(cells))
	for _, c := range cells {
		if !c.Valid() {
			return nil, invalid("square (%d,%d) is outside the grid", c.Row, c.Col)
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out, nil
}

// ReserveSquares claims cells for a player.  The batch succeeds or fails
// as a whole; on success the full row-major grid is returned.
func (e *Engine) ReserveSquares(ctx context.Context, gameID string, playerID uint64, cells []model.Cell) ([]model.Square, error) {
	cells, err := normalizeCells(cells)
	if err != nil {
		return nil, err
	}
	err = e.store.InTx(ctx, func(tx Tx) error {
		g, err := tx.LockGame(ctx, gameID)
		if err != nil {
			return err
		}
		if !g.Reservable() {
			return ErrGameNotJoinable
		}

		p, err := tx.GetPlayer(ctx, gameID, playerID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if p != nil && p.Blocked {
			return ErrPlayerBlocked
		}

		held, err := tx.CountHeld(ctx, gameID, playerID)
		if err != nil {
			return err
		}
		if held+len(cells) > g.MaxSquaresPerPlayer {
			return &QuotaError{Max: g.MaxSquaresPerPlayer, Held: held, Requested: len(cells)}
		}

		current, err := tx.SquaresAt(ctx, gameID, cells)
		if err != nil {
			return err
		}
		var taken []model.Cell
		for _, sq := range current {
			if sq.Status != model.SquareAvailable {
				taken = append(taken, sq.Cell())
			}
		}
		if len(taken) > 0 {
			return &CellUnavailableError{Cells: taken}
		}

		n, err := tx.ReserveCells(ctx, gameID, playerID, cells, e.clock())
		if err != nil {
			return err
		}
		if n != int64(len(cells)) {
			// another writer slipped in between the read and the update
			return &CellUnavailableError{Cells: cells}
		}

		if p == nil {
			return tx.EnsurePlayer(ctx, gameID, playerID, model.RolePlayer)
		}
		return nil
	})
	if err != nil {
		e.metrics.ClaimRejected(claimOutcome(err))
		return nil, err
	}
	e.metrics.ClaimAccepted(len(cells))
	e.logger.Info("squares reserved",
		zap.String("game_id", gameID),
		zap.Uint64("player_id", playerID),
		zap.Int("count", len(cells)))
	e.changed(ctx, gameID)
	return e.store.ListSquares(ctx, gameID)
}

func claimOutcome(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrGameNotJoinable):
		return "not_joinable"
	case errors.Is(err, ErrPlayerBlocked):
		return "blocked"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota"
	case errors.Is(err, ErrCellUnavailable):
		return "conflict"
	default:
		return "error"
	}
}

// ReleaseOwnSquares lets a player drop their unpaid reservations while
// the grid is still open.
func (e *Engine) ReleaseOwnSquares(ctx context.Context, gameID string, playerID uint64) (int64, error) {
	var released int64
	err := e.store.InTx(ctx, func(tx Tx) error {
		g, err := tx.LockGame(ctx, gameID)
		if err != nil {
			return err
		}
		if !g.Reservable() {
			return ErrGameNotJoinable
		}
		released, err = tx.ReleaseReserved(ctx, gameID, playerID)
		return err
	})
	if err != nil {
		return 0, err
	}
	e.afterRelease(ctx, gameID, playerID, released)
	return released, nil
}

// ReleasePlayerSquares is the manager's way of freeing a player's unpaid
// reservations.  CONFIRMED squares are left alone.
func (e *Engine) ReleasePlayerSquares(ctx context.Context, gameID string, actorID, playerID uint64) (int64, error) {
	var released int64
	err := e.store.InTx(ctx, func(tx Tx) error {
		g, err := tx.LockGame(ctx, gameID)
		if err != nil {
			return err
		}
		if err := requireManager(ctx, tx, g, actorID); err != nil {
			return err
		}
		if g.Status != model.GameOpen && g.Status != model.GameLocked {
			return ErrInvalidTransition
		}
		released, err = tx.ReleaseReserved(ctx, gameID, playerID)
		return err
	})
	if err != nil {
		return 0, err
	}
	e.afterRelease(ctx, gameID, playerID, released)
	return released, nil
}

func (e *Engine) afterRelease(ctx context.Context, gameID string, playerID uint64, released int64) {
	if released == 0 {
		return
	}
	e.metrics.SquaresReleased("manual", int(released))
	e.logger.Info("squares released",
		zap.String("game_id", gameID),
		zap.Uint64("player_id", playerID),
		zap.Int64("count", released))
	e.changed(ctx, gameID)
}

// requireManager checks the manager or co-manager capability inside a
// transaction.
func requireManager(ctx context.Context, tx Tx, g *model.Game, actorID uint64) error {
	if g.ManagerID == actorID {
		return nil
	}
	p, err := tx.GetPlayer(ctx, g.ID, actorID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if !model.CapabilitiesFor(g, actorID, p).CanManage() {
		return ErrNotManager
	}
	return nil
}
