package grid

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/football-squares/internal/model"
)

// LockResult is returned by LockGrid.  UnfilledCount is the number of
// squares that are not CONFIRMED at lock time; it is a warning, never a
// reason to refuse the lock.
type LockResult struct {
	RowNumbers    []int
	ColNumbers    []int
	LockedAt      time.Time
	UnfilledCount int
}

// Shuffle returns a uniformly random permutation of 0..GridSize-1 using
// Fisher-Yates with indexes drawn from r.
func Shuffle(r io.Reader) ([]int, error) {
	out := make([]int, model.GridSize)
	for i := range out {
		out[i] = i
	}
	for i := len(out) - 1; i > 0; i-- {
		j, err := rand.Int(r, big.NewInt(int64(i+1)))
		if err != nil {
			return nil, fmt.Errorf("shuffle: %w", err)
		}
		k := int(j.Int64())
		out[i], out[k] = out[k], out[i]
	}
	return out, nil
}

// LockGrid freezes an OPEN grid and assigns the row and column digits.
// It succeeds at most once per game.
func (e *Engine) LockGrid(ctx context.Context, gameID string, actorID uint64) (*LockResult, error) {
	var res *LockResult
	err := e.store.InTx(ctx, func(tx Tx) error {
		g, err := tx.LockGame(ctx, gameID)
		if err != nil {
			return err
		}
		if err := requireManager(ctx, tx, g, actorID); err != nil {
			return err
		}
		if g.Status != model.GameOpen {
			if len(g.RowNumbers) > 0 || g.Status == model.GameLocked {
				return ErrAlreadyLocked
			}
			return fmt.Errorf("%w: cannot lock a %s game", ErrInvalidTransition, g.Status)
		}
		rows, err := Shuffle(e.rand)
		if err != nil {
			return err
		}
		cols, err := Shuffle(e.rand)
		if err != nil {
			return err
		}
		unfilled, err := tx.CountUnconfirmed(ctx, gameID)
		if err != nil {
			return err
		}
		at := e.clock()
		n, err := tx.AssignNumbers(ctx, gameID, rows, cols, at)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrAlreadyLocked
		}
		res = &LockResult{RowNumbers: rows, ColNumbers: cols, LockedAt: at, UnfilledCount: unfilled}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.GridLocked()
	e.logger.Info("grid locked",
		zap.String("game_id", gameID),
		zap.Uint64("actor_id", actorID),
		zap.Ints("rows", res.RowNumbers),
		zap.Ints("cols", res.ColNumbers),
		zap.Int("unfilled", res.UnfilledCount))
	e.changed(ctx, gameID)
	return res, nil
}

// Transition actions accepted by TransitionGame besides lock.
const (
	ActionLock     = "lock"
	ActionStart    = "start"
	ActionComplete = "complete"
	ActionCancel   = "cancel"
)

var transitions = map[string]struct {
	from []model.GameStatus
	to   model.GameStatus
}{
	ActionStart:    {from: []model.GameStatus{model.GameLocked}, to: model.GameInProgress},
	ActionComplete: {from: []model.GameStatus{model.GameLocked, model.GameInProgress}, to: model.GameCompleted},
	ActionCancel: {
		from: []model.GameStatus{model.GameDraft, model.GameOpen, model.GameLocked, model.GameInProgress},
		to:   model.GameCancelled,
	},
}

// TransitionGame applies a manager status action.  "lock" is delegated to
// LockGrid; the others are single conditional status updates.
func (e *Engine) TransitionGame(ctx context.Context, gameID string, actorID uint64, action string) (*model.Game, error) {
	if action == ActionLock {
		if _, err := e.LockGrid(ctx, gameID, actorID); err != nil {
			return nil, err
		}
		return e.store.GetGame(ctx, gameID)
	}
	t, ok := transitions[action]
	if !ok {
		return nil, invalid("unknown action %q", action)
	}
	err := e.store.InTx(ctx, func(tx Tx) error {
		g, err := tx.LockGame(ctx, gameID)
		if err != nil {
			return err
		}
		if g.ManagerID != actorID {
			return ErrNotManager
		}
		n, err := tx.TransitionStatus(ctx, gameID, t.from, t.to)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: cannot %s a %s game", ErrInvalidTransition, action, g.Status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("game status changed",
		zap.String("game_id", gameID),
		zap.String("action", action),
		zap.String("status", string(t.to)))
	e.changed(ctx, gameID)
	return e.store.GetGame(ctx, gameID)
}

// ActivateGame moves a DRAFT game to OPEN once billing has cleared.
// Activating an already OPEN game is a no-op.
func (e *Engine) ActivateGame(ctx context.Context, gameID string) (*model.Game, error) {
	err := e.store.InTx(ctx, func(tx Tx) error {
		g, err := tx.LockGame(ctx, gameID)
		if err != nil {
			return err
		}
		if g.Status == model.GameOpen {
			return nil
		}
		n, err := tx.TransitionStatus(ctx, gameID, []model.GameStatus{model.GameDraft}, model.GameOpen)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: cannot activate a %s game", ErrInvalidTransition, g.Status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("game activated", zap.String("game_id", gameID))
	e.changed(ctx, gameID)
	return e.store.GetGame(ctx, gameID)
}
