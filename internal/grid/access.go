package grid

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/football-squares/internal/model"
	"github.com/iliyamo/football-squares/internal/utils"
)

const minAccessPasswordLen = 4

// AccessStatus tells a viewer whether the game is password protected and
// whether they are already through the gate.
type AccessStatus struct {
	PasswordRequired bool
	HasAccess        bool
}

// SetAccessPassword enables or clears the join password of a game.
func (e *Engine) SetAccessPassword(ctx context.Context, gameID string, actorID uint64, enabled bool, password string) error {
	var hash *string
	if enabled {
		password = strings.TrimSpace(password)
		if len(password) < minAccessPasswordLen {
			return invalid("password must be at least %d characters", minAccessPasswordLen)
		}
		h, err := utils.HashPassword(password, e.cfg.BcryptCost)
		if err != nil {
			return err
		}
		hash = &h
	}
	err := e.store.InTx(ctx, func(tx Tx) error {
		g, err := tx.LockGame(ctx, gameID)
		if err != nil {
			return err
		}
		if g.ManagerID != actorID {
			return ErrNotManager
		}
		return tx.SetAccessPassword(ctx, gameID, hash)
	})
	if err != nil {
		return err
	}
	e.logger.Info("access password updated", zap.String("game_id", gameID), zap.Bool("enabled", enabled))
	return nil
}

// CheckAccess reports the gate state for viewerID.  token is an access
// token previously issued by GrantAccess and may be empty.
func (e *Engine) CheckAccess(ctx context.Context, gameID string, viewerID uint64, token string) (AccessStatus, error) {
	g, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		return AccessStatus{}, err
	}
	return e.accessStatus(ctx, g, viewerID, token)
}

func (e *Engine) accessStatus(ctx context.Context, g *model.Game, viewerID uint64, token string) (AccessStatus, error) {
	st := AccessStatus{PasswordRequired: g.PasswordProtected()}
	if !st.PasswordRequired {
		st.HasAccess = true
		return st, nil
	}
	caps, err := e.Capabilities(ctx, g, viewerID)
	if err != nil {
		return st, err
	}
	if caps.CanView() {
		st.HasAccess = true
		return st, nil
	}
	if token != "" {
		st.HasAccess = utils.VerifyGameAccessToken(e.cfg.AccessSecret, token, g.ID, viewerID, e.clock()) == nil
	}
	return st, nil
}

// GrantAccess checks the game password and issues a signed token scoped
// to the game and the viewer.
func (e *Engine) GrantAccess(ctx context.Context, gameID string, viewerID uint64, password string) (utils.AccessToken, error) {
	g, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		return utils.AccessToken{}, err
	}
	if g.PasswordProtected() && !utils.VerifyPassword(*g.AccessPasswordHash, password) {
		e.logger.Info("access password rejected", zap.String("game_id", gameID), zap.Uint64("viewer_id", viewerID))
		return utils.AccessToken{}, ErrAccessDenied
	}
	return utils.NewGameAccessToken(e.cfg.AccessSecret, g.ID, viewerID, e.cfg.AccessTTL, e.clock())
}

// JoinGame adds viewerID to the roster as a PLAYER.  Password protected
// games require a valid access token.  Joining twice is harmless.
func (e *Engine) JoinGame(ctx context.Context, gameID string, viewerID uint64, token string) (*model.GamePlayer, error) {
	g, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	st, err := e.accessStatus(ctx, g, viewerID, token)
	if err != nil {
		return nil, err
	}
	if !st.HasAccess {
		return nil, ErrAccessDenied
	}
	err = e.store.InTx(ctx, func(tx Tx) error {
		g, err := tx.LockGame(ctx, gameID)
		if err != nil {
			return err
		}
		p, err := tx.GetPlayer(ctx, gameID, viewerID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if p != nil {
			if p.Blocked {
				return ErrPlayerBlocked
			}
			return nil
		}
		if !g.Reservable() {
			return ErrGameNotJoinable
		}
		return tx.EnsurePlayer(ctx, gameID, viewerID, model.RolePlayer)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("player joined", zap.String("game_id", gameID), zap.Uint64("player_id", viewerID))
	return e.store.GetPlayer(ctx, gameID, viewerID)
}
