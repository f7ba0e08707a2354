package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/football-squares/internal/grid"
)

const wsWriteWait = 10 * time.Second

// FeedHandler streams live grid snapshots over SSE and WebSocket.
type FeedHandler struct {
	Engine       *grid.Engine
	Feed         *grid.Feed
	PingInterval time.Duration
	Logger       *zap.Logger
	upgrader     websocket.Upgrader
}

// NewFeedHandler panics if engine or feed is nil.  A nil logger is
// replaced with a no-op one.
func NewFeedHandler(engine *grid.Engine, feed *grid.Feed, ping time.Duration, logger *zap.Logger) *FeedHandler {
	if engine == nil || feed == nil {
		panic("nil dependency passed to NewFeedHandler")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ping <= 0 {
		ping = 25 * time.Second
	}
	return &FeedHandler{
		Engine:       engine,
		Feed:         feed,
		PingInterval: ping,
		Logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// authorize writes an error response and reports false unless the caller
// may watch the game.
func (h *FeedHandler) authorize(c echo.Context) (string, bool) {
	uid, ok := currentUser(c)
	if !ok {
		return "", false
	}
	ctx := c.Request().Context()
	id := gameID(c)
	g, err := h.Engine.Store().GetGame(ctx, id)
	if err != nil {
		_ = writeError(c, err)
		return "", false
	}
	caps, err := h.Engine.Capabilities(ctx, g, uid)
	if err != nil {
		_ = writeError(c, err)
		return "", false
	}
	if !caps.CanView() {
		_ = writeError(c, grid.ErrAccessDenied)
		return "", false
	}
	return id, true
}

// Stream handles GET /v1/games/:id/stream as Server-Sent Events.
func (h *FeedHandler) Stream(c echo.Context) error {
	id, ok := h.authorize(c)
	if !ok {
		return nil
	}
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	var mu sync.Mutex
	go func() {
		t := time.NewTicker(h.PingInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				mu.Lock()
				_, err := fmt.Fprint(w, ": ping\n\n")
				if err == nil {
					w.Flush()
				}
				mu.Unlock()
				if err != nil {
					cancel()
					return
				}
			}
		}
	}()

	err := h.Feed.Stream(ctx, id, func(s *grid.Snapshot) error {
		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data); err != nil {
			return err
		}
		w.Flush()
		return nil
	})
	if err != nil {
		h.Logger.Debug("sse stream ended", zap.String("game_id", id), zap.Error(err))
	}
	return nil
}

// WebSocket handles GET /v1/games/:id/ws.  The socket is write-only from
// the server's side; client frames are read and dropped so close and pong
// frames are processed.
func (h *FeedHandler) WebSocket(c echo.Context) error {
	id, ok := h.authorize(c)
	if !ok {
		return nil
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.Logger.Debug("ws upgrade failed", zap.Error(err))
		return nil
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	readWait := 2 * h.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.Logger.Debug("ws read error", zap.String("game_id", id), zap.Error(err))
				}
				return
			}
		}
	}()

	var mu sync.Mutex
	go func() {
		t := time.NewTicker(h.PingInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				mu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
				mu.Unlock()
				if err != nil {
					cancel()
					return
				}
			}
		}
	}()

	err = h.Feed.Stream(ctx, id, func(s *grid.Snapshot) error {
		mu.Lock()
		defer mu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(s)
	})
	if err != nil {
		h.Logger.Debug("ws stream ended", zap.String("game_id", id), zap.Error(err))
	}
	mu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	mu.Unlock()
	return nil
}
