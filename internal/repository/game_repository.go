package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/football-squares/internal/grid"
	"github.com/iliyamo/football-squares/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

const gameColumns = `g.id, g.manager_id, g.name, g.team_home, g.team_away, g.game_date, g.status,
	g.entry_code, g.price_per_square_cents, g.payout_q1, g.payout_q2, g.payout_q3, g.payout_final,
	g.max_squares_per_player, g.reservation_hours, g.auto_release_enabled, g.access_password_hash,
	g.row_numbers, g.col_numbers, g.locked_at, g.created_at, g.updated_at`

// GameRepo provides data access to the games table.
type GameRepo struct {
	db *sql.DB
}

// NewGameRepo returns a GameRepo bound to db.
func NewGameRepo(db *sql.DB) *GameRepo { return &GameRepo{db: db} }

func scanGame(s rowScanner) (*model.Game, error) {
	var (
		g        model.Game
		price    sql.NullInt64
		password sql.NullString
		rows     []byte
		cols     []byte
		lockedAt sql.NullTime
	)
	err := s.Scan(&g.ID, &g.ManagerID, &g.Name, &g.TeamHome, &g.TeamAway, &g.GameDate, &g.Status,
		&g.EntryCode, &price, &g.Payouts.Q1, &g.Payouts.Q2, &g.Payouts.Q3, &g.Payouts.Final,
		&g.MaxSquaresPerPlayer, &g.ReservationHours, &g.AutoReleaseEnabled, &password,
		&rows, &cols, &lockedAt, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, grid.ErrNotFound
		}
		return nil, err
	}
	if price.Valid {
		p := uint32(price.Int64)
		g.PricePerSquareCents = &p
	}
	if password.Valid {
		g.AccessPasswordHash = &password.String
	}
	if lockedAt.Valid {
		t := lockedAt.Time
		g.LockedAt = &t
	}
	if g.RowNumbers, err = decodeNumbers(rows); err != nil {
		return nil, err
	}
	if g.ColNumbers, err = decodeNumbers(cols); err != nil {
		return nil, err
	}
	return &g, nil
}

func decodeNumbers(raw []byte) ([]int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out []int
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode grid numbers: %w", err)
	}
	return out, nil
}

func nullablePrice(p *uint32) any {
	if p == nil {
		return nil
	}
	return *p
}

// GetByID returns a game or grid.ErrNotFound.
func (r *GameRepo) GetByID(ctx context.Context, id string) (*model.Game, error) {
	return scanGame(r.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games g WHERE g.id = ?`, id))
}

// GetByEntryCode looks a game up by its public join code.
func (r *GameRepo) GetByEntryCode(ctx context.Context, code string) (*model.Game, error) {
	return scanGame(r.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games g WHERE g.entry_code = ?`, code))
}

// ListForUser returns the games a user manages or has joined, newest
// first, with roster and square counters.
func (r *GameRepo) ListForUser(ctx context.Context, userID uint64) ([]model.GameSummary, error) {
	const q = `SELECT ` + gameColumns + `, u.name,
		(SELECT COUNT(*) FROM game_players p WHERE p.game_id = g.id),
		(SELECT COUNT(*) FROM squares s WHERE s.game_id = g.id AND s.status <> 'AVAILABLE'),
		(SELECT COUNT(*) FROM squares s WHERE s.game_id = g.id AND s.status = 'CONFIRMED')
	FROM games g
	JOIN users u ON u.id = g.manager_id
	WHERE g.manager_id = ?
	   OR EXISTS (SELECT 1 FROM game_players p WHERE p.game_id = g.id AND p.user_id = ?)
	ORDER BY g.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.GameSummary
	for rows.Next() {
		var (
			sum   model.GameSummary
			extra summaryScanner
		)
		extra.dest = []any{&sum.ManagerName, &sum.PlayerCount, &sum.ClaimedCount, &sum.ConfirmedCount}
		extra.src = rows
		g, err := scanGame(&extra)
		if err != nil {
			return nil, err
		}
		sum.Game = *g
		out = append(out, sum)
	}
	return out, rows.Err()
}

// summaryScanner appends the summary columns to the game columns so one
// scanGame serves both queries.
type summaryScanner struct {
	src  rowScanner
	dest []any
}

func (s *summaryScanner) Scan(dest ...any) error {
	return s.src.Scan(append(dest, s.dest...)...)
}

// Delete removes a game; squares and players go with it through the
// foreign key cascade.
func (r *GameRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM games WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return grid.ErrNotFound
	}
	return nil
}

// ListExpiring returns OPEN games with auto release enabled.
func (r *GameRepo) ListExpiring(ctx context.Context) ([]model.Game, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games g WHERE g.status = 'OPEN' AND g.auto_release_enabled = TRUE ORDER BY g.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// EntryCodeExistsTx reports whether a code is already taken.
func (r *GameRepo) EntryCodeExistsTx(ctx context.Context, tx *sql.Tx, code string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM games WHERE entry_code = ?)`, code).Scan(&exists)
	return exists, err
}

// InsertTx stores a new game.
func (r *GameRepo) InsertTx(ctx context.Context, tx *sql.Tx, g *model.Game) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO games (id, manager_id, name, team_home, team_away, game_date, status, entry_code,
			price_per_square_cents, payout_q1, payout_q2, payout_q3, payout_final,
			max_squares_per_player, reservation_hours, auto_release_enabled, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		g.ID, g.ManagerID, g.Name, g.TeamHome, g.TeamAway, g.GameDate.UTC(), string(g.Status), g.EntryCode,
		nullablePrice(g.PricePerSquareCents), g.Payouts.Q1, g.Payouts.Q2, g.Payouts.Q3, g.Payouts.Final,
		g.MaxSquaresPerPlayer, g.ReservationHours, g.AutoReleaseEnabled, g.CreatedAt.UTC(), g.UpdatedAt.UTC())
	return err
}

// LockTx reads the game row with SELECT ... FOR UPDATE.  The row lock is
// held until the transaction ends.
func (r *GameRepo) LockTx(ctx context.Context, tx *sql.Tx, id string) (*model.Game, error) {
	return scanGame(tx.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games g WHERE g.id = ? FOR UPDATE`, id))
}

// UpdateSettingsTx writes the editable settings of a game.
func (r *GameRepo) UpdateSettingsTx(ctx context.Context, tx *sql.Tx, g *model.Game) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE games SET name = ?, price_per_square_cents = ?, max_squares_per_player = ?,
		 auto_release_enabled = ?, updated_at = ? WHERE id = ?`,
		g.Name, nullablePrice(g.PricePerSquareCents), g.MaxSquaresPerPlayer,
		g.AutoReleaseEnabled, g.UpdatedAt.UTC(), g.ID)
	return err
}

// SetAccessPasswordTx stores or clears (nil hash) the join password.
func (r *GameRepo) SetAccessPasswordTx(ctx context.Context, tx *sql.Tx, gameID string, hash *string) error {
	var v any
	if hash != nil {
		v = *hash
	}
	_, err := tx.ExecContext(ctx, `UPDATE games SET access_password_hash = ? WHERE id = ?`, v, gameID)
	return err
}

// TransitionTx moves the game to `to` when its status is one of `from`.
func (r *GameRepo) TransitionTx(ctx context.Context, tx *sql.Tx, gameID string, from []model.GameStatus, to model.GameStatus) (int64, error) {
	if len(from) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(from)+2)
	args = append(args, string(to), gameID)
	for _, f := range from {
		args = append(args, string(f))
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE games SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status IN (`+placeholders(len(from))+`)`,
		args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AssignNumbersTx flips OPEN to LOCKED and stores both permutations in one
// conditional statement.
func (r *GameRepo) AssignNumbersTx(ctx context.Context, tx *sql.Tx, gameID string, rows, cols []int, at time.Time) (int64, error) {
	rj, err := json.Marshal(rows)
	if err != nil {
		return 0, err
	}
	cj, err := json.Marshal(cols)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE games SET status = 'LOCKED', row_numbers = ?, col_numbers = ?, locked_at = ?, updated_at = ?
		 WHERE id = ? AND status = 'OPEN'`,
		string(rj), string(cj), at.UTC(), at.UTC(), gameID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
