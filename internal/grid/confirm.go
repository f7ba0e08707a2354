package grid

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/football-squares/internal/model"
	"github.com/iliyamo/football-squares/internal/queue"
)

// ConfirmSquares marks RESERVED squares as paid.  Ids that point at
// AVAILABLE or already CONFIRMED squares, or at another game, are skipped.
// The returned count is the number of squares that actually changed.
func (e *Engine) ConfirmSquares(ctx context.Context, gameID string, actorID uint64, squareIDs []uint64) (int, error) {
	ids := uniqueIDs(squareIDs)
	if len(ids) == 0 {
		return 0, invalid("at least one square id is required")
	}
	var (
		game     *model.Game
		reserved []model.Square
		count    int64
	)
	err := e.store.InTx(ctx, func(tx Tx) error {
		g, err := tx.LockGame(ctx, gameID)
		if err != nil {
			return err
		}
		if err := requireManager(ctx, tx, g, actorID); err != nil {
			return err
		}
		if g.Status == model.GameCancelled {
			return ErrInvalidTransition
		}
		game = g
		reserved, err = tx.ReservedByID(ctx, gameID, ids)
		if err != nil || len(reserved) == 0 {
			return err
		}
		matched := make([]uint64, 0, len(reserved))
		for _, sq := range reserved {
			matched = append(matched, sq.ID)
		}
		count, err = tx.ConfirmSquares(ctx, gameID, matched, e.clock())
		return err
	})
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	e.metrics.SquaresConfirmed(int(count))
	e.logger.Info("squares confirmed",
		zap.String("game_id", gameID),
		zap.Uint64("actor_id", actorID),
		zap.Int64("count", count))
	e.changed(ctx, gameID)
	e.notifyConfirmed(ctx, game, reserved)
	return int(count), nil
}

// notifyConfirmed sends one payment_confirmed event per affected player.
func (e *Engine) notifyConfirmed(ctx context.Context, g *model.Game, squares []model.Square) {
	perPlayer := map[uint64]int{}
	var order []uint64
	for _, sq := range squares {
		if sq.PlayerID == nil {
			continue
		}
		if _, ok := perPlayer[*sq.PlayerID]; !ok {
			order = append(order, *sq.PlayerID)
		}
		perPlayer[*sq.PlayerID]++
	}
	if len(order) == 0 || e.notifier == nil {
		return
	}
	users, err := e.store.GetUsers(ctx, order)
	if err != nil {
		e.logger.Error("load users for confirmation notice", zap.String("game_id", g.ID), zap.Error(err))
		return
	}
	for _, id := range order {
		u, ok := users[id]
		if !ok {
			continue
		}
		e.notify(ctx, queue.NotificationEvent{
			Type:           queue.EventPaymentConfirmed,
			GameID:         g.ID,
			GameName:       g.Name,
			RecipientID:    u.ID,
			RecipientEmail: u.Email,
			RecipientName:  u.DisplayName(),
			SquareCount:    perPlayer[id],
			Link:           e.gameLink(g),
		})
	}
}

func (e *Engine) gameLink(g *model.Game) string {
	return e.cfg.AppURL + "/games/" + g.ID
}

func (e *Engine) joinLink(g *model.Game) string {
	return e.cfg.AppURL + "/join/" + g.EntryCode
}

func uniqueIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
