package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/football-squares/internal/config"
	"github.com/iliyamo/football-squares/internal/middleware"
	"github.com/iliyamo/football-squares/internal/model"
	"github.com/iliyamo/football-squares/internal/repository"
	"github.com/iliyamo/football-squares/internal/utils"
)

// UserStore is the part of repository.UserRepo the auth endpoints use.
type UserStore interface {
	Create(ctx context.Context, email, name, password string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdatePasswordHash(ctx context.Context, id uint64, hash string) error
}

// TokenStore is the part of repository.TokenRepo the auth endpoints use.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	Rotate(ctx context.Context, userID uint64, oldHash, newHash string, exp time.Time) error
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// authTimeout bounds the store round-trips of one auth request.
const authTimeout = 5 * time.Second

// AuthHandler serves registration and the session lifecycle: a short-lived
// access JWT plus an opaque refresh token that rotates on every use.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore) *AuthHandler {
	if u == nil || t == nil {
		panic("nil store passed to NewAuthHandler")
	}
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

type registerReq struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, apiError{Error: "unauthorized", Message: msg})
}

// mint signs an access token and draws a refresh token for u.  The caller
// decides how the refresh hash is persisted.
func (h *AuthHandler) mint(u model.User) (authResp, string, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, "", fmt.Errorf("sign access: %w", err)
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, "", fmt.Errorf("draw refresh: %w", err)
	}
	return authResp{
		User:    userPart{ID: u.ID, Email: u.Email, Name: u.DisplayName()},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, utils.HashRefreshRaw(refresh.Raw), nil
}

// startSession mints a pair and records its refresh token.
func (h *AuthHandler) startSession(ctx context.Context, u model.User) (authResp, error) {
	resp, hash, err := h.mint(u)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, hash, resp.Refresh.Expires); err != nil {
		return authResp{}, fmt.Errorf("store refresh: %w", err)
	}
	return resp, nil
}

// Register creates the account and starts its first session.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, req.Name, req.Password, h.Cfg.BcryptCost)
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, apiError{Error: "email_taken", Message: "an account with this email exists"})
	case errors.Is(err, utils.ErrPasswordTooLong):
		return badRequest(c, err.Error())
	case err != nil:
		return writeError(c, fmt.Errorf("create user: %w", err))
	}
	resp, err := h.startSession(ctx, model.User{ID: uid, Email: req.Email, Name: req.Name})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login checks the password and starts a session.  A hash stored under a
// different bcrypt cost is upgraded on the way through.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, sql.ErrNoRows) {
		return unauthorized(c, "invalid credentials")
	}
	if err != nil {
		return writeError(c, fmt.Errorf("load user: %w", err))
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return unauthorized(c, "invalid credentials")
	}
	if utils.NeedsRehash(u.PasswordHash, h.Cfg.BcryptCost) {
		if hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost); err == nil {
			if err := h.Users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
				middleware.Logger(c).Warn("rehash password", zap.Uint64("user_id", u.ID), zap.Error(err))
			}
		}
	}
	resp, err := h.startSession(ctx, u)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh trades a refresh token for a new pair.  Each token rotates
// once; a replay gets 401.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token is required")
	}
	oldHash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, oldHash)
	if err != nil {
		return unauthorized(c, "invalid refresh token")
	}
	u, err := h.Users.GetByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return unauthorized(c, "invalid refresh token")
	}
	if err != nil {
		return writeError(c, fmt.Errorf("load user: %w", err))
	}
	resp, newHash, err := h.mint(u)
	if err != nil {
		return writeError(c, err)
	}
	err = h.Tokens.Rotate(ctx, userID, oldHash, newHash, resp.Refresh.Expires)
	if errors.Is(err, repository.ErrTokenInvalid) {
		return unauthorized(c, "invalid refresh token")
	}
	if err != nil {
		return writeError(c, fmt.Errorf("rotate refresh: %w", err))
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout ends the session named by the body's refresh token, or every
// session of the caller when the body has none.  Runs behind JWTAuth.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	if raw := strings.TrimSpace(req.RefreshToken); raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return unauthorized(c, "invalid refresh token")
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return writeError(c, fmt.Errorf("revoke refresh: %w", err))
		}
		return c.NoContent(http.StatusNoContent)
	}
	uid, ok := currentUser(c)
	if !ok {
		return nil
	}
	if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		return writeError(c, fmt.Errorf("revoke sessions: %w", err))
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return nil
	}
	u, err := h.Users.GetByID(c.Request().Context(), uid)
	if errors.Is(err, sql.ErrNoRows) {
		return unauthorized(c, "unknown user")
	}
	if err != nil {
		return writeError(c, fmt.Errorf("load user: %w", err))
	}
	return c.JSON(http.StatusOK, userPart{ID: u.ID, Email: u.Email, Name: u.DisplayName()})
}
