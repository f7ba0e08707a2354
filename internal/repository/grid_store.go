package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/football-squares/internal/grid"
	"github.com/iliyamo/football-squares/internal/model"
)

// GridStore implements grid.Store on MySQL.  Claims, confirmations and the
// lock serialise on the game row (SELECT ... FOR UPDATE) and every square
// write is conditional on the prior status, so several server processes
// can share one database.
type GridStore struct {
	db      *sql.DB
	games   *GameRepo
	squares *SquareRepo
	players *PlayerRepo
	users   *UserRepo
}

var _ grid.Store = (*GridStore)(nil)

// NewGridStore wires the repositories over db.
func NewGridStore(db *sql.DB) *GridStore {
	if db == nil {
		panic("repository: nil db")
	}
	return &GridStore{
		db:      db,
		games:   NewGameRepo(db),
		squares: NewSquareRepo(db),
		players: NewPlayerRepo(db),
		users:   NewUserRepo(db),
	}
}

// InTx begins a transaction, runs fn and commits.  Any error from fn, or
// a panic, rolls back.
func (s *GridStore) InTx(ctx context.Context, fn func(tx grid.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&gridTx{s: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

func (s *GridStore) GetGame(ctx context.Context, id string) (*model.Game, error) {
	return s.games.GetByID(ctx, id)
}

func (s *GridStore) GetGameByEntryCode(ctx context.Context, code string) (*model.Game, error) {
	return s.games.GetByEntryCode(ctx, code)
}

func (s *GridStore) ListGamesForUser(ctx context.Context, userID uint64) ([]model.GameSummary, error) {
	return s.games.ListForUser(ctx, userID)
}

func (s *GridStore) DeleteGame(ctx context.Context, id string) error {
	return s.games.Delete(ctx, id)
}

// ListSquares returns grid.ErrNotFound for a game without squares so a
// deleted game is not mistaken for an empty grid.
func (s *GridStore) ListSquares(ctx context.Context, gameID string) ([]model.Square, error) {
	out, err := s.squares.ListByGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, grid.ErrNotFound
	}
	return out, nil
}

func (s *GridStore) GetPlayer(ctx context.Context, gameID string, userID uint64) (*model.GamePlayer, error) {
	return s.players.Get(ctx, gameID, userID)
}

func (s *GridStore) ListPlayers(ctx context.Context, gameID string) ([]model.GamePlayer, error) {
	return s.players.List(ctx, gameID)
}

func (s *GridStore) GetUsers(ctx context.Context, ids []uint64) (map[uint64]model.User, error) {
	return s.users.GetMany(ctx, ids)
}

func (s *GridStore) ListExpiringGames(ctx context.Context) ([]model.Game, error) {
	return s.games.ListExpiring(ctx)
}

func (s *GridStore) ReleaseExpired(ctx context.Context, gameID string, cutoff time.Time) (int64, error) {
	return s.squares.ReleaseExpired(ctx, gameID, cutoff)
}

// gridTx binds the repositories' ...Tx methods to one *sql.Tx.
type gridTx struct {
	s  *GridStore
	tx *sql.Tx
}

func (t *gridTx) EntryCodeExists(ctx context.Context, code string) (bool, error) {
	return t.s.games.EntryCodeExistsTx(ctx, t.tx, code)
}

func (t *gridTx) InsertGame(ctx context.Context, g *model.Game) error {
	return t.s.games.InsertTx(ctx, t.tx, g)
}

func (t *gridTx) InsertSquares(ctx context.Context, gameID string) error {
	return t.s.squares.InsertGridTx(ctx, t.tx, gameID)
}

func (t *gridTx) LockGame(ctx context.Context, id string) (*model.Game, error) {
	return t.s.games.LockTx(ctx, t.tx, id)
}

func (t *gridTx) UpdateGameSettings(ctx context.Context, g *model.Game) error {
	return t.s.games.UpdateSettingsTx(ctx, t.tx, g)
}

func (t *gridTx) SetAccessPassword(ctx context.Context, gameID string, hash *string) error {
	return t.s.games.SetAccessPasswordTx(ctx, t.tx, gameID, hash)
}

func (t *gridTx) TransitionStatus(ctx context.Context, gameID string, from []model.GameStatus, to model.GameStatus) (int64, error) {
	return t.s.games.TransitionTx(ctx, t.tx, gameID, from, to)
}

func (t *gridTx) AssignNumbers(ctx context.Context, gameID string, rows, cols []int, at time.Time) (int64, error) {
	return t.s.games.AssignNumbersTx(ctx, t.tx, gameID, rows, cols, at)
}

func (t *gridTx) GetPlayer(ctx context.Context, gameID string, userID uint64) (*model.GamePlayer, error) {
	return t.s.players.GetTx(ctx, t.tx, gameID, userID)
}

func (t *gridTx) EnsurePlayer(ctx context.Context, gameID string, userID uint64, role model.PlayerRole) error {
	return t.s.players.EnsureTx(ctx, t.tx, gameID, userID, role)
}

func (t *gridTx) UpdatePlayer(ctx context.Context, p *model.GamePlayer) (int64, error) {
	return t.s.players.UpdateTx(ctx, t.tx, p)
}

func (t *gridTx) DeletePlayer(ctx context.Context, gameID string, userID uint64) (int64, error) {
	return t.s.players.DeleteTx(ctx, t.tx, gameID, userID)
}

func (t *gridTx) CountHeld(ctx context.Context, gameID string, userID uint64) (int, error) {
	return t.s.squares.CountHeldTx(ctx, t.tx, gameID, userID)
}

func (t *gridTx) MaxHeld(ctx context.Context, gameID string) (int, error) {
	return t.s.squares.MaxHeldTx(ctx, t.tx, gameID)
}

func (t *gridTx) SquaresAt(ctx context.Context, gameID string, cells []model.Cell) ([]model.Square, error) {
	return t.s.squares.AtCellsTx(ctx, t.tx, gameID, cells)
}

func (t *gridTx) ReserveCells(ctx context.Context, gameID string, userID uint64, cells []model.Cell, at time.Time) (int64, error) {
	return t.s.squares.ReserveTx(ctx, t.tx, gameID, userID, cells, at)
}

func (t *gridTx) ReleaseReserved(ctx context.Context, gameID string, userID uint64) (int64, error) {
	return t.s.squares.ReleaseReservedTx(ctx, t.tx, gameID, userID)
}

func (t *gridTx) ReservedByID(ctx context.Context, gameID string, ids []uint64) ([]model.Square, error) {
	return t.s.squares.ReservedByIDTx(ctx, t.tx, gameID, ids)
}

func (t *gridTx) ConfirmSquares(ctx context.Context, gameID string, ids []uint64, at time.Time) (int64, error) {
	return t.s.squares.ConfirmTx(ctx, t.tx, gameID, ids, at)
}

func (t *gridTx) CountUnconfirmed(ctx context.Context, gameID string) (int, error) {
	return t.s.squares.CountUnconfirmedTx(ctx, t.tx, gameID)
}
