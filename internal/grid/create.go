package grid

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/football-squares/internal/model"
)

const (
	entryCodeLength   = 6
	entryCodeAttempts = 10
	// no 0/O or 1/I so codes survive being read aloud
	entryCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// GameInput is what a manager supplies when creating a game.
type GameInput struct {
	Name                string
	TeamHome            string
	TeamAway            string
	GameDate            time.Time
	PricePerSquareCents *uint32
	Payouts             model.Payouts
	MaxSquaresPerPlayer int
	ReservationHours    int
	AutoReleaseEnabled  bool
}

func (in *GameInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.TeamHome = strings.TrimSpace(in.TeamHome)
	in.TeamAway = strings.TrimSpace(in.TeamAway)
	switch {
	case len(in.Name) < 3:
		return invalid("game name must be at least 3 characters")
	case in.TeamHome == "" || in.TeamAway == "":
		return invalid("both team names are required")
	case in.GameDate.IsZero():
		return invalid("game date is required")
	}
	if err := validatePayouts(in.Payouts); err != nil {
		return err
	}
	if err := validateMaxSquares(in.MaxSquaresPerPlayer); err != nil {
		return err
	}
	if in.ReservationHours < 1 || in.ReservationHours > 168 {
		return invalid("reservation hours must be between 1 and 168")
	}
	return nil
}

func validatePayouts(p model.Payouts) error {
	for _, v := range []int{p.Q1, p.Q2, p.Q3, p.Final} {
		if v < 0 || v > 100 {
			return invalid("payout percentages must be between 0 and 100")
		}
	}
	if p.Total() != 100 {
		return invalid("payouts must total 100%%, got %d", p.Total())
	}
	return nil
}

func validateMaxSquares(n int) error {
	if n < 1 || n > model.GridSize*model.GridSize {
		return invalid("max squares per player must be between 1 and %d", model.GridSize*model.GridSize)
	}
	return nil
}

// CreateGame inserts a game, its 100 squares and the manager's roster row
// in one transaction.
func (e *Engine) CreateGame(ctx context.Context, managerID uint64, in GameInput) (*model.Game, error) {
	if managerID == 0 {
		return nil, invalid("manager is required")
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	status := model.GameOpen
	if e.cfg.RequireActivation {
		status = model.GameDraft
	}
	now := e.clock()
	g := &model.Game{
		ID:                  uuid.NewString(),
		ManagerID:           managerID,
		Name:                in.Name,
		TeamHome:            in.TeamHome,
		TeamAway:            in.TeamAway,
		GameDate:            in.GameDate.UTC(),
		Status:              status,
		PricePerSquareCents: in.PricePerSquareCents,
		Payouts:             in.Payouts,
		MaxSquaresPerPlayer: in.MaxSquaresPerPlayer,
		ReservationHours:    in.ReservationHours,
		AutoReleaseEnabled:  in.AutoReleaseEnabled,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	err := e.store.InTx(ctx, func(tx Tx) error {
		code, err := e.uniqueEntryCode(ctx, tx)
		if err != nil {
			return err
		}
		g.EntryCode = code
		if err := tx.InsertGame(ctx, g); err != nil {
			return fmt.Errorf("insert game: %w", err)
		}
		if err := tx.InsertSquares(ctx, g.ID); err != nil {
			return fmt.Errorf("insert squares: %w", err)
		}
		return tx.EnsurePlayer(ctx, g.ID, managerID, model.RoleCoManager)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("game created",
		zap.String("game_id", g.ID),
		zap.Uint64("manager_id", managerID),
		zap.String("status", string(g.Status)))
	return g, nil
}

func (e *Engine) uniqueEntryCode(ctx context.Context, tx Tx) (string, error) {
	for i := 0; i < entryCodeAttempts; i++ {
		code, err := randomCode(e.rand, entryCodeLength)
		if err != nil {
			return "", err
		}
		exists, err := tx.EntryCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("could not allocate a unique entry code")
}

func randomCode(r io.Reader, n int) (string, error) {
	max := big.NewInt(int64(len(entryCodeAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(r, max)
		if err != nil {
			return "", err
		}
		b[i] = entryCodeAlphabet[idx.Int64()]
	}
	return string(b), nil
}

// GamePatch holds the editable settings of a game.  Nil fields are left
// untouched.
type GamePatch struct {
	Name                *string
	PricePerSquareCents *uint32
	ClearPrice          bool
	MaxSquaresPerPlayer *int
	AutoReleaseEnabled  *bool
}

// UpdateGame edits settings while the grid is still DRAFT or OPEN.
func (e *Engine) UpdateGame(ctx context.Context, gameID string, actorID uint64, patch GamePatch) (*model.Game, error) {
	var out *model.Game
	err := e.store.InTx(ctx, func(tx Tx) error {
		g, err := tx.LockGame(ctx, gameID)
		if err != nil {
			return err
		}
		if g.ManagerID != actorID {
			return ErrNotManager
		}
		if g.Status != model.GameDraft && g.Status != model.GameOpen {
			return fmt.Errorf("%w: settings are frozen once the grid is %s", ErrInvalidTransition, g.Status)
		}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if len(name) < 3 {
				return invalid("game name must be at least 3 characters")
			}
			g.Name = name
		}
		if patch.ClearPrice {
			g.PricePerSquareCents = nil
		} else if patch.PricePerSquareCents != nil {
			g.PricePerSquareCents = patch.PricePerSquareCents
		}
		if patch.MaxSquaresPerPlayer != nil {
			limit := *patch.MaxSquaresPerPlayer
			if err := validateMaxSquares(limit); err != nil {
				return err
			}
			if limit < g.MaxSquaresPerPlayer {
				held, err := tx.MaxHeld(ctx, gameID)
				if err != nil {
					return err
				}
				if limit < held {
					return invalid("a player already holds %d squares; the limit cannot go below that", held)
				}
			}
			g.MaxSquaresPerPlayer = limit
		}
		if patch.AutoReleaseEnabled != nil {
			g.AutoReleaseEnabled = *patch.AutoReleaseEnabled
		}
		g.UpdatedAt = e.clock()
		if err := tx.UpdateGameSettings(ctx, g); err != nil {
			return err
		}
		out = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteGame removes a game together with its squares and roster.  This
// is the only way a CONFIRMED square ever disappears.
func (e *Engine) DeleteGame(ctx context.Context, gameID string, actorID uint64) error {
	g, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if g.ManagerID != actorID {
		return ErrNotManager
	}
	if err := e.store.DeleteGame(ctx, gameID); err != nil {
		return err
	}
	e.logger.Info("game deleted", zap.String("game_id", gameID), zap.Uint64("manager_id", actorID))
	e.changed(ctx, gameID)
	return nil
}

// ListGames returns the games the user manages or plays in.
func (e *Engine) ListGames(ctx context.Context, userID uint64) ([]model.GameSummary, error) {
	return e.store.ListGamesForUser(ctx, userID)
}

// ResolveEntryCode maps a public join code to its game.
func (e *Engine) ResolveEntryCode(ctx context.Context, code string) (*model.Game, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, invalid("entry code is required")
	}
	return e.store.GetGameByEntryCode(ctx, code)
}
