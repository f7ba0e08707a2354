package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	insertRefreshSQL = "INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)"
	revokeRefreshSQL = "UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE revoked_at IS NULL AND "
)

// TokenRepo stores refresh token hashes.  Raw tokens never reach the
// database.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

func insertRefresh(ctx context.Context, db querier, userID uint64, hash string, exp time.Time) error {
	_, err := db.ExecContext(ctx, insertRefreshSQL, userID, hash, exp.UTC())
	return err
}

func revokeWhere(ctx context.Context, db querier, cond string, args ...any) (int64, error) {
	res, err := db.ExecContext(ctx, revokeRefreshSQL+cond, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// StoreRefresh records the hash of a newly issued refresh token.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	return insertRefresh(ctx, r.DB, userID, tokenHash, exp)
}

// ValidateRefresh resolves a hash to its user.  Unknown, revoked and
// expired tokens all yield ErrTokenInvalid.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	var (
		userID  uint64
		exp     time.Time
		revoked sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&userID, &exp, &revoked)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, ErrTokenInvalid
	case err != nil:
		return 0, err
	case revoked.Valid, !exp.After(time.Now().UTC()):
		return 0, ErrTokenInvalid
	}
	return userID, nil
}

// Rotate swaps oldHash for newHash.  The revoke is conditional, so of two
// concurrent rotations of one token only the first commits.
func (r *TokenRepo) Rotate(ctx context.Context, userID uint64, oldHash, newHash string, exp time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	n, err := revokeWhere(ctx, tx, "token_hash=? AND user_id=?", oldHash, userID)
	if err != nil {
		return fmt.Errorf("revoke refresh: %w", err)
	}
	if n == 0 {
		return ErrTokenInvalid
	}
	if err := insertRefresh(ctx, tx, userID, newHash, exp); err != nil {
		return fmt.Errorf("store refresh: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// RevokeByHash ends one session.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := revokeWhere(ctx, r.DB, "token_hash=?", tokenHash)
	return err
}

// RevokeAllForUser ends every session of a user.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := revokeWhere(ctx, r.DB, "user_id=?", userID)
	return err
}

// PurgeExpired deletes tokens that expired before cutoff.
func (r *TokenRepo) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE expires_at < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
