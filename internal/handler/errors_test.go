package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/football-squares/internal/grid"
	"github.com/iliyamo/football-squares/internal/middleware"
)

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{grid.ErrNotFound, http.StatusNotFound, "not_found"},
		{fmt.Errorf("load: %w", grid.ErrNotManager), http.StatusForbidden, "not_manager"},
		{grid.ErrPlayerBlocked, http.StatusForbidden, "player_blocked"},
		{&grid.CellUnavailableError{}, http.StatusConflict, "cell_unavailable"},
		{&grid.QuotaError{Max: 3, Held: 3, Requested: 1}, http.StatusUnprocessableEntity, "quota_exceeded"},
		{fmt.Errorf("%w: cannot start", grid.ErrInvalidTransition), http.StatusConflict, "invalid_transition"},
		{errors.New("connection reset"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, code := errorStatus(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestValidatorUsesJSONNames(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&playerActionReq{Action: "dance"})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "action must be one of")
		assert.Contains(t, err.Error(), "user_id is required")
	}
	assert.NoError(t, v.Validate(&playerActionReq{Action: "block", UserID: 7}))
}

func TestInternalErrorLogsThroughZap(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := echo.New()
	e.Use(middleware.RequestLogger(zap.New(core)))
	e.GET("/v1/games/:id", func(c echo.Context) error {
		return writeError(c, errors.New("connection reset"))
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/games/g1", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
	failed := logs.FilterMessage("request failed").All()
	require.Len(t, failed, 1)
	fields := failed[0].ContextMap()
	assert.Equal(t, "/v1/games/:id", fields["route"])
	assert.Equal(t, "connection reset", fields["error"])
}

func TestWriteErrorWithoutRequestLogger(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, writeError(c, errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
