package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/football-squares/internal/grid"
	"github.com/iliyamo/football-squares/internal/model"
)

const playerColumns = `p.id, p.game_id, p.user_id, u.name, p.role, p.blocked, p.created_at`

// PlayerRepo provides data access to the game_players table.
type PlayerRepo struct {
	db *sql.DB
}

// NewPlayerRepo returns a PlayerRepo bound to db.
func NewPlayerRepo(db *sql.DB) *PlayerRepo { return &PlayerRepo{db: db} }

func scanPlayer(s rowScanner) (*model.GamePlayer, error) {
	var p model.GamePlayer
	if err := s.Scan(&p.ID, &p.GameID, &p.UserID, &p.UserName, &p.Role, &p.Blocked, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, grid.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func getPlayer(ctx context.Context, q querier, gameID string, userID uint64) (*model.GamePlayer, error) {
	return scanPlayer(q.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM game_players p JOIN users u ON u.id = p.user_id
		 WHERE p.game_id = ? AND p.user_id = ?`, gameID, userID))
}

// Get returns a roster entry or grid.ErrNotFound.
func (r *PlayerRepo) Get(ctx context.Context, gameID string, userID uint64) (*model.GamePlayer, error) {
	return getPlayer(ctx, r.db, gameID, userID)
}

// GetTx is Get inside a transaction.
func (r *PlayerRepo) GetTx(ctx context.Context, tx *sql.Tx, gameID string, userID uint64) (*model.GamePlayer, error) {
	return getPlayer(ctx, tx, gameID, userID)
}

// List returns the roster of a game in join order.
func (r *PlayerRepo) List(ctx context.Context, gameID string) ([]model.GamePlayer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+playerColumns+` FROM game_players p JOIN users u ON u.id = p.user_id
		 WHERE p.game_id = ? ORDER BY p.created_at, p.id`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.GamePlayer
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// EnsureTx adds the user to the roster unless already present.
func (r *PlayerRepo) EnsureTx(ctx context.Context, tx *sql.Tx, gameID string, userID uint64, role model.PlayerRole) error {
	_, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO game_players (game_id, user_id, role) VALUES (?,?,?)`,
		gameID, userID, string(role))
	return err
}

// UpdateTx writes role and blocked flag.  The DSN sets clientFoundRows so
// an unchanged row still counts as matched.
func (r *PlayerRepo) UpdateTx(ctx context.Context, tx *sql.Tx, p *model.GamePlayer) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE game_players SET role = ?, blocked = ? WHERE game_id = ? AND user_id = ?`,
		string(p.Role), p.Blocked, p.GameID, p.UserID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteTx removes a roster entry.
func (r *PlayerRepo) DeleteTx(ctx context.Context, tx *sql.Tx, gameID string, userID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM game_players WHERE game_id = ? AND user_id = ?`, gameID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
