package grid

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/football-squares/internal/model"
)

// Capabilities returns what userID may do in the game.
func (e *Engine) Capabilities(ctx context.Context, g *model.Game, userID uint64) (model.Capabilities, error) {
	p, err := e.store.GetPlayer(ctx, g.ID, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return model.Capabilities{}, err
	}
	return model.CapabilitiesFor(g, userID, p), nil
}

// GameView is a game as seen by one viewer.
type GameView struct {
	Game    *model.Game
	Caps    model.Capabilities
	Squares []model.Square
}

// ViewGame loads a game with its grid for a manager or joined player.
func (e *Engine) ViewGame(ctx context.Context, gameID string, viewerID uint64) (*GameView, error) {
	g, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	caps, err := e.Capabilities(ctx, g, viewerID)
	if err != nil {
		return nil, err
	}
	if !caps.CanView() {
		return nil, ErrAccessDenied
	}
	squares, err := e.store.ListSquares(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return &GameView{Game: g, Caps: caps, Squares: squares}, nil
}

// ListPlayers returns the roster; managers only.
func (e *Engine) ListPlayers(ctx context.Context, gameID string, actorID uint64) ([]model.GamePlayer, error) {
	g, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	caps, err := e.Capabilities(ctx, g, actorID)
	if err != nil {
		return nil, err
	}
	if !caps.CanManage() {
		return nil, ErrNotManager
	}
	return e.store.ListPlayers(ctx, gameID)
}

// SetPlayerRole promotes or demotes a roster member.
func (e *Engine) SetPlayerRole(ctx context.Context, gameID string, actorID, playerID uint64, role model.PlayerRole) error {
	if !model.ValidRole(role) {
		return invalid("unknown role %q", role)
	}
	return e.updatePlayer(ctx, gameID, actorID, playerID, func(p *model.GamePlayer) { p.Role = role })
}

// SetPlayerBlocked toggles the blocked flag.  Blocked players keep their
// squares but cannot claim new ones.
func (e *Engine) SetPlayerBlocked(ctx context.Context, gameID string, actorID, playerID uint64, blocked bool) error {
	return e.updatePlayer(ctx, gameID, actorID, playerID, func(p *model.GamePlayer) { p.Blocked = blocked })
}

func (e *Engine) updatePlayer(ctx context.Context, gameID string, actorID, playerID uint64, mutate func(*model.GamePlayer)) error {
	err := e.store.InTx(ctx, func(tx Tx) error {
		g, err := tx.LockGame(ctx, gameID)
		if err != nil {
			return err
		}
		if g.ManagerID != actorID {
			return ErrNotManager
		}
		if playerID == g.ManagerID {
			return invalid("the game manager cannot be changed")
		}
		p, err := tx.GetPlayer(ctx, gameID, playerID)
		if err != nil {
			return err
		}
		mutate(p)
		n, err := tx.UpdatePlayer(ctx, p)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Info("player updated", zap.String("game_id", gameID), zap.Uint64("player_id", playerID))
	return nil
}

// RemovePlayer releases the player's RESERVED squares and drops the
// roster row.  CONFIRMED squares keep their occupant.
func (e *Engine) RemovePlayer(ctx context.Context, gameID string, actorID, playerID uint64) (int64, error) {
	var released int64
	err := e.store.InTx(ctx, func(tx Tx) error {
		g, err := tx.LockGame(ctx, gameID)
		if err != nil {
			return err
		}
		if g.ManagerID != actorID {
			return ErrNotManager
		}
		if playerID == g.ManagerID {
			return invalid("the game manager cannot be removed")
		}
		n, err := tx.DeletePlayer(ctx, gameID, playerID)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		released, err = tx.ReleaseReserved(ctx, gameID, playerID)
		return err
	})
	if err != nil {
		return 0, err
	}
	e.logger.Info("player removed",
		zap.String("game_id", gameID),
		zap.Uint64("player_id", playerID),
		zap.Int64("released", released))
	if released > 0 {
		e.metrics.SquaresReleased("removed", int(released))
	}
	e.changed(ctx, gameID)
	return released, nil
}
