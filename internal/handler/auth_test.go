package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/football-squares/internal/config"
	"github.com/iliyamo/football-squares/internal/handler"
	"github.com/iliyamo/football-squares/internal/middleware"
	"github.com/iliyamo/football-squares/internal/model"
	"github.com/iliyamo/football-squares/internal/repository"
	"github.com/iliyamo/football-squares/internal/router"
	"github.com/iliyamo/football-squares/internal/utils"
)

type fakeUsers struct {
	mu   sync.Mutex
	byID map[uint64]model.User
}

func (f *fakeUsers) Create(_ context.Context, email, name, password string, cost int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	id := uint64(len(f.byID) + 1)
	f.byID[id] = model.User{ID: id, Email: email, Name: name, PasswordHash: hash}
	return id, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, sql.ErrNoRows
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeUsers) UpdatePasswordHash(_ context.Context, id uint64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = hash
	f.byID[id] = u
	return nil
}

type refreshRow struct {
	userID  uint64
	exp     time.Time
	revoked bool
}

type fakeTokens struct {
	mu   sync.Mutex
	rows map[string]*refreshRow
}

func (f *fakeTokens) StoreRefresh(_ context.Context, userID uint64, hash string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[hash] = &refreshRow{userID: userID, exp: exp}
	return nil
}

func (f *fakeTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[hash]
	if !ok || r.revoked || time.Now().After(r.exp) {
		return 0, repository.ErrTokenInvalid
	}
	return r.userID, nil
}

func (f *fakeTokens) Rotate(_ context.Context, userID uint64, oldHash, newHash string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[oldHash]
	if !ok || r.revoked || r.userID != userID {
		return repository.ErrTokenInvalid
	}
	r.revoked = true
	f.rows[newHash] = &refreshRow{userID: userID, exp: exp}
	return nil
}

func (f *fakeTokens) RevokeByHash(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[hash]; ok {
		r.revoked = true
	}
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.userID == userID {
			r.revoked = true
		}
	}
	return nil
}

func newAuthServer(t *testing.T) (*echo.Echo, *fakeTokens) {
	t.Helper()
	e, _, tokens := newAuthServerWithUsers(t, &fakeUsers{byID: map[uint64]model.User{}})
	return e, tokens
}

func newAuthServerWithUsers(t *testing.T, users *fakeUsers) (*echo.Echo, *fakeUsers, *fakeTokens) {
	t.Helper()
	cfg := config.Config{JWTSecret: jwtSecret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost}
	tokens := &fakeTokens{rows: map[string]*refreshRow{}}
	e := echo.New()
	e.Validator = handler.NewValidator()
	pass := middleware.NewTokenBucket(config.RateLimitConfig{}, nil)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), jwtSecret, pass)
	return e, users, tokens
}

type authBody struct {
	User struct {
		ID    uint64 `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"user"`
	Access  struct{ Token string } `json:"access"`
	Refresh struct{ Token string } `json:"refresh"`
}

func post(e *echo.Echo, path, authz string, body any) *httptest.ResponseRecorder {
	bs, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(bs))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if authz != "" {
		req.Header.Set(echo.HeaderAuthorization, authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRegisterLoginRefresh(t *testing.T) {
	e, _ := newAuthServer(t)

	rec := post(e, "/v1/auth/register", "", map[string]string{
		"email": " Alice@Example.com ", "name": "Alice", "password": "correct horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reg authBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	assert.Equal(t, "alice@example.com", reg.User.Email)
	assert.NotEmpty(t, reg.Access.Token)

	rec = post(e, "/v1/auth/register", "", map[string]string{
		"email": "alice@example.com", "name": "Alice again", "password": "correct horse",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = post(e, "/v1/auth/register", "", map[string]string{"email": "not-an-email", "name": "X", "password": "correct horse"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(e, "/v1/auth/login", "", map[string]string{"email": "alice@example.com", "password": "wrong password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(e, "/v1/auth/login", "", map[string]string{"email": "ALICE@example.com", "password": "correct horse"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login authBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	rec = post(e, "/v1/auth/refresh", "", map[string]string{"refresh_token": login.Refresh.Token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var refreshed authBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshed))
	assert.NotEqual(t, login.Refresh.Token, refreshed.Refresh.Token)

	rec = post(e, "/v1/auth/refresh", "", map[string]string{"refresh_token": login.Refresh.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "a rotated token cannot be replayed")

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+refreshed.Access.Token)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Alice"`)
}

func TestLogoutRevokesAllSessions(t *testing.T) {
	e, tokens := newAuthServer(t)

	rec := post(e, "/v1/auth/register", "", map[string]string{
		"email": "bob@example.com", "name": "Bob", "password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var reg authBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))

	rec = post(e, "/v1/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(e, "/v1/logout", "Bearer "+reg.Access.Token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	_, err := tokens.ValidateRefresh(context.Background(), utils.HashRefreshRaw(reg.Refresh.Token))
	assert.ErrorIs(t, err, repository.ErrTokenInvalid)
}

func TestLoginUpgradesStaleHash(t *testing.T) {
	old, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost+1)
	require.NoError(t, err)
	users := &fakeUsers{byID: map[uint64]model.User{
		1: {ID: 1, Email: "carol@example.com", Name: "Carol", PasswordHash: string(old)},
	}}
	e, users, _ := newAuthServerWithUsers(t, users)

	rec := post(e, "/v1/auth/login", "", map[string]string{"email": "carol@example.com", "password": "correct horse"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	u, err := users.GetByID(context.Background(), 1)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(u.PasswordHash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "correct horse"))
}
