package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/football-squares/internal/model"
)

const squareColumns = `s.id, s.game_id, s.row_idx, s.col_idx, s.status, s.player_id, COALESCE(u.name, ''), s.reserved_at, s.confirmed_at`

// SquareRepo provides data access to the squares table.  Every write that
// changes a square's status is conditional on the status it expects to
// find; callers compare RowsAffected against what they asked for.
type SquareRepo struct {
	db *sql.DB
}

// NewSquareRepo returns a SquareRepo bound to db.
func NewSquareRepo(db *sql.DB) *SquareRepo { return &SquareRepo{db: db} }

func scanSquares(rows *sql.Rows) ([]model.Square, error) {
	defer rows.Close()
	out := make([]model.Square, 0, model.GridSize*model.GridSize)
	for rows.Next() {
		var (
			s           model.Square
			playerID    sql.NullInt64
			reservedAt  sql.NullTime
			confirmedAt sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.GameID, &s.Row, &s.Col, &s.Status, &playerID, &s.PlayerName, &reservedAt, &confirmedAt); err != nil {
			return nil, err
		}
		if playerID.Valid {
			id := uint64(playerID.Int64)
			s.PlayerID = &id
		}
		if reservedAt.Valid {
			t := reservedAt.Time
			s.ReservedAt = &t
		}
		if confirmedAt.Valid {
			t := confirmedAt.Time
			s.ConfirmedAt = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// InsertGridTx creates all GridSize*GridSize squares of a game with a
// single multi-row INSERT.
func (r *SquareRepo) InsertGridTx(ctx context.Context, tx *sql.Tx, gameID string) error {
	const n = model.GridSize * model.GridSize
	var sb strings.Builder
	sb.WriteString("INSERT INTO squares (game_id, row_idx, col_idx, status) VALUES ")
	args := make([]any, 0, n*3)
	for row := 0; row < model.GridSize; row++ {
		for col := 0; col < model.GridSize; col++ {
			if len(args) > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString("(?,?,?,'AVAILABLE')")
			args = append(args, gameID, row, col)
		}
	}
	_, err := tx.ExecContext(ctx, sb.String(), args...)
	return err
}

// ListByGame returns the grid in row-major order with occupant names.
func (r *SquareRepo) ListByGame(ctx context.Context, gameID string) ([]model.Square, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+squareColumns+` FROM squares s LEFT JOIN users u ON u.id = s.player_id
		 WHERE s.game_id = ? ORDER BY s.row_idx, s.col_idx`, gameID)
	if err != nil {
		return nil, err
	}
	return scanSquares(rows)
}

// CountHeldTx counts the RESERVED and CONFIRMED squares of a player.
func (r *SquareRepo) CountHeldTx(ctx context.Context, tx *sql.Tx, gameID string, userID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM squares WHERE game_id = ? AND player_id = ? AND status IN ('RESERVED','CONFIRMED')`,
		gameID, userID).Scan(&n)
	return n, err
}

// MaxHeldTx returns the largest number of RESERVED and CONFIRMED squares
// any single player holds in the game.
func (r *SquareRepo) MaxHeldTx(ctx context.Context, tx *sql.Tx, gameID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(held), 0) FROM (
		   SELECT COUNT(*) AS held FROM squares
		   WHERE game_id = ? AND player_id IS NOT NULL AND status IN ('RESERVED','CONFIRMED')
		   GROUP BY player_id) per_player`, gameID).Scan(&n)
	return n, err
}

func cellArgs(gameID string, cells []model.Cell) (string, []any) {
	args := make([]any, 0, len(cells)*2+1)
	args = append(args, gameID)
	tuples := make([]string, len(cells))
	for i, c := range cells {
		tuples[i] = "(?,?)"
		args = append(args, c.Row, c.Col)
	}
	return strings.Join(tuples, ","), args
}

// AtCellsTx reads and row-locks the squares at the given cells.
func (r *SquareRepo) AtCellsTx(ctx context.Context, tx *sql.Tx, gameID string, cells []model.Cell) ([]model.Square, error) {
	if len(cells) == 0 {
		return nil, nil
	}
	in, args := cellArgs(gameID, cells)
	rows, err := tx.QueryContext(ctx,
		`SELECT `+squareColumns+` FROM squares s LEFT JOIN users u ON u.id = s.player_id
		 WHERE s.game_id = ? AND (s.row_idx, s.col_idx) IN (`+in+`)
		 ORDER BY s.row_idx, s.col_idx FOR UPDATE`, args...)
	if err != nil {
		return nil, err
	}
	return scanSquares(rows)
}

// ReserveTx assigns the cells to userID, touching only squares still
// AVAILABLE.
func (r *SquareRepo) ReserveTx(ctx context.Context, tx *sql.Tx, gameID string, userID uint64, cells []model.Cell, at time.Time) (int64, error) {
	if len(cells) == 0 {
		return 0, nil
	}
	in, where := cellArgs(gameID, cells)
	args := append([]any{userID, at.UTC()}, where...)
	res, err := tx.ExecContext(ctx,
		`UPDATE squares SET status = 'RESERVED', player_id = ?, reserved_at = ?, confirmed_at = NULL
		 WHERE game_id = ? AND (row_idx, col_idx) IN (`+in+`) AND status = 'AVAILABLE'`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReleaseReservedTx frees every RESERVED square of a player.
func (r *SquareRepo) ReleaseReservedTx(ctx context.Context, tx *sql.Tx, gameID string, userID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE squares SET status = 'AVAILABLE', player_id = NULL, reserved_at = NULL
		 WHERE game_id = ? AND player_id = ? AND status = 'RESERVED'`, gameID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReservedByIDTx returns the RESERVED squares among ids.
func (r *SquareRepo) ReservedByIDTx(ctx context.Context, tx *sql.Tx, gameID string, ids []uint64) ([]model.Square, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := append([]any{gameID}, idArgs(ids)...)
	rows, err := tx.QueryContext(ctx,
		`SELECT `+squareColumns+` FROM squares s LEFT JOIN users u ON u.id = s.player_id
		 WHERE s.game_id = ? AND s.id IN (`+placeholders(len(ids))+`) AND s.status = 'RESERVED'
		 ORDER BY s.row_idx, s.col_idx FOR UPDATE`, args...)
	if err != nil {
		return nil, err
	}
	return scanSquares(rows)
}

// ConfirmTx marks squares CONFIRMED, touching only those still RESERVED.
func (r *SquareRepo) ConfirmTx(ctx context.Context, tx *sql.Tx, gameID string, ids []uint64, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := append([]any{at.UTC(), gameID}, idArgs(ids)...)
	res, err := tx.ExecContext(ctx,
		`UPDATE squares SET status = 'CONFIRMED', confirmed_at = ?
		 WHERE game_id = ? AND id IN (`+placeholders(len(ids))+`) AND status = 'RESERVED'`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountUnconfirmedTx counts squares that are not CONFIRMED.
func (r *SquareRepo) CountUnconfirmedTx(ctx context.Context, tx *sql.Tx, gameID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM squares WHERE game_id = ? AND status <> 'CONFIRMED'`, gameID).Scan(&n)
	return n, err
}

// ReleaseExpired frees RESERVED squares reserved before cutoff.  The join
// on games keeps the sweep from touching a grid that was locked, or had
// auto-release switched off, after the sweeper read its game list.
func (r *SquareRepo) ReleaseExpired(ctx context.Context, gameID string, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE squares s JOIN games g ON g.id = s.game_id
		 SET s.status = 'AVAILABLE', s.player_id = NULL, s.reserved_at = NULL
		 WHERE s.game_id = ? AND g.status = 'OPEN' AND g.auto_release_enabled = 1
		   AND s.status = 'RESERVED' AND s.reserved_at < ?`,
		gameID, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func idArgs(ids []uint64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
