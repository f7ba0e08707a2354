package grid

import (
	"context"
	"time"

	"github.com/iliyamo/football-squares/internal/model"
)

// Store is the persistence boundary of the engine.  Implementations must
// return ErrNotFound (possibly wrapped) for missing games and players.
//
// Every write that changes square state is a conditional update scoped by
// the expected prior status; the returned row counts are what the engine
// uses to detect conflicts.  In-process locks are never relied upon.
type Store interface {
	// InTx runs fn in a single transaction.  A non-nil error from fn
	// rolls the transaction back and is returned unchanged.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetGame(ctx context.Context, id string) (*model.Game, error)
	GetGameByEntryCode(ctx context.Context, code string) (*model.Game, error)
	ListGamesForUser(ctx context.Context, userID uint64) ([]model.GameSummary, error)
	DeleteGame(ctx context.Context, id string) error

	// ListSquares returns all squares of a game in row-major order with
	// the occupant display name filled in.
	ListSquares(ctx context.Context, gameID string) ([]model.Square, error)
	GetPlayer(ctx context.Context, gameID string, userID uint64) (*model.GamePlayer, error)
	ListPlayers(ctx context.Context, gameID string) ([]model.GamePlayer, error)
	GetUsers(ctx context.Context, ids []uint64) (map[uint64]model.User, error)

	// ListExpiringGames returns OPEN games with auto release enabled.
	ListExpiringGames(ctx context.Context) ([]model.Game, error)
	// ReleaseExpired moves RESERVED squares with reserved_at < cutoff back
	// to AVAILABLE, provided the game is still OPEN.
	ReleaseExpired(ctx context.Context, gameID string, cutoff time.Time) (int64, error)
}

// Tx is the set of operations available inside Store.InTx.
type Tx interface {
	EntryCodeExists(ctx context.Context, code string) (bool, error)
	InsertGame(ctx context.Context, g *model.Game) error
	// InsertSquares creates the full grid of AVAILABLE squares.
	InsertSquares(ctx context.Context, gameID string) error

	// LockGame reads the game row and holds it until the transaction
	// ends, serialising every claim, confirm and lock for that game.
	LockGame(ctx context.Context, id string) (*model.Game, error)
	UpdateGameSettings(ctx context.Context, g *model.Game) error
	SetAccessPassword(ctx context.Context, gameID string, hash *string) error
	// TransitionStatus moves the game to `to` only if its status is one
	// of `from`.  It returns the number of rows changed.
	TransitionStatus(ctx context.Context, gameID string, from []model.GameStatus, to model.GameStatus) (int64, error)
	// AssignNumbers stores the permutations and flips OPEN to LOCKED.
	AssignNumbers(ctx context.Context, gameID string, rows, cols []int, at time.Time) (int64, error)

	GetPlayer(ctx context.Context, gameID string, userID uint64) (*model.GamePlayer, error)
	EnsurePlayer(ctx context.Context, gameID string, userID uint64, role model.PlayerRole) error
	UpdatePlayer(ctx context.Context, p *model.GamePlayer) (int64, error)
	DeletePlayer(ctx context.Context, gameID string, userID uint64) (int64, error)

	// CountHeld counts RESERVED and CONFIRMED squares of a player.
	CountHeld(ctx context.Context, gameID string, userID uint64) (int, error)
	// MaxHeld is the largest CountHeld over all players of the game.
	MaxHeld(ctx context.Context, gameID string) (int, error)
	SquaresAt(ctx context.Context, gameID string, cells []model.Cell) ([]model.Square, error)
	// ReserveCells updates only squares still AVAILABLE.
	ReserveCells(ctx context.Context, gameID string, userID uint64, cells []model.Cell, at time.Time) (int64, error)
	// ReleaseReserved frees the RESERVED squares of a player.
	ReleaseReserved(ctx context.Context, gameID string, userID uint64) (int64, error)
	// ReservedByID returns the RESERVED squares among ids.
	ReservedByID(ctx context.Context, gameID string, ids []uint64) ([]model.Square, error)
	// ConfirmSquares updates only squares still RESERVED.
	ConfirmSquares(ctx context.Context, gameID string, ids []uint64, at time.Time) (int64, error)
	CountUnconfirmed(ctx context.Context, gameID string) (int, error)
}
