package handler_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/football-squares/internal/grid"
	"github.com/iliyamo/football-squares/internal/model"
	"github.com/iliyamo/football-squares/internal/utils"
)

func accessToken(t *testing.T, uid uint64) string {
	t.Helper()
	tok, err := utils.NewAccessToken(jwtSecret, uid, 15)
	require.NoError(t, err)
	return tok.Token
}

func TestServerSentEvents(t *testing.T) {
	s := newTestServer(t)
	id, _ := s.createGame(t)
	srv := httptest.NewServer(s.e)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		srv.URL+"/v1/games/"+id+"/stream?token="+accessToken(t, alice), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "only joined players may watch")

	req, err = http.NewRequestWithContext(ctx, http.MethodGet,
		srv.URL+"/v1/games/"+id+"/stream?token="+accessToken(t, manager), nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	require.True(t, sc.Scan())
	assert.Equal(t, "event: snapshot", sc.Text())
	require.True(t, sc.Scan())
	data, ok := strings.CutPrefix(sc.Text(), "data: ")
	require.True(t, ok)

	var snap grid.Snapshot
	require.NoError(t, json.Unmarshal([]byte(data), &snap))
	assert.Equal(t, id, snap.GameID)
	assert.Equal(t, model.GameOpen, snap.Status)
	assert.Len(t, snap.Squares, 100)
}

func TestWebSocketFeedPushesChanges(t *testing.T) {
	s := newTestServer(t)
	id, _ := s.createGame(t)
	srv := httptest.NewServer(s.e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/games/" + id + "/ws?token=" + accessToken(t, manager)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	var snap grid.Snapshot
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&snap))
	require.Len(t, snap.Squares, 100)
	assert.Equal(t, model.SquareAvailable, snap.Squares[0].Status)

	rec, _ := s.do(t, manager, http.MethodPost, "/v1/games/"+id+"/squares",
		map[string]any{"cells": []model.Cell{{Row: 0, Col: 0}}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, model.SquareReserved, snap.Squares[0].Status)
	assert.Equal(t, "Manager", snap.Squares[0].PlayerName)
}

func TestWebSocketRejectsOutsiders(t *testing.T) {
	s := newTestServer(t)
	id, _ := s.createGame(t)
	srv := httptest.NewServer(s.e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/games/" + id + "/ws?token=" + accessToken(t, bob)
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
