// Package grid implements the square reservation and grid-locking engine:
// claims, payment confirmation, expiry of stale reservations, the one-time
// number assignment and the live snapshot feed.  Persistence is reached
// through the Store interface so the same rules run against MySQL and the
// in-memory store.
package grid

import (
	"context"
	"crypto/rand"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/football-squares/internal/metrics"
	"github.com/iliyamo/football-squares/internal/queue"
)

// Notifier hands notification events to the email collaborator.  The
// engine decides when an event fires; delivery is someone else's job.
type Notifier interface {
	Notify(ctx context.Context, ev queue.NotificationEvent) error
}

// Broker carries "grid changed" signals keyed by game id.  Subscribe
// returns a channel that receives a value after every Publish for the
// game and a cancel func that releases the subscription.
type Broker interface {
	Publish(ctx context.Context, gameID string) error
	Subscribe(ctx context.Context, gameID string) (<-chan struct{}, func())
}

// Settings holds the engine's tunables.
type Settings struct {
	RequireActivation bool          // new games start in DRAFT until billing activates them
	AccessSecret      []byte        // HMAC key of game access tokens
	AccessTTL         time.Duration // lifetime of game access tokens
	BcryptCost        int           // cost used for access passwords
	AppURL            string        // base URL used in notification links
}

// Engine applies the square state machine on top of a Store.
type Engine struct {
	store    Store
	notifier Notifier
	broker   Broker
	metrics  *metrics.Recorder
	logger   *zap.Logger
	now      func() time.Time
	rand     io.Reader
	cfg      Settings
}

// Option customises an Engine.
type Option func(*Engine)

func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

func WithBroker(b Broker) Option { return func(e *Engine) { e.broker = b } }

func WithMetrics(m *metrics.Recorder) Option { return func(e *Engine) { e.metrics = m } }

func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithRandom replaces crypto/rand as the entropy source of shuffles and
// entry codes.
func WithRandom(r io.Reader) Option { return func(e *Engine) { e.rand = r } }

// NewEngine constructs an Engine.  The store must be non-nil.
func NewEngine(store Store, cfg Settings, opts ...Option) *Engine {
	if store == nil {
		panic("nil store passed to NewEngine")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 24 * time.Hour
	}
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = 12
	}
	e := &Engine{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
		rand:   rand.Reader,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store exposes the underlying store to read-only collaborators such as
// the feed and the sweeper.
func (e *Engine) Store() Store { return e.store }

func (e *Engine) clock() time.Time { return e.now().UTC() }

// changed signals feed subscribers.  Failures only cost freshness, the
// fallback interval still refreshes viewers.
func (e *Engine) changed(ctx context.Context, gameID string) {
	if e.broker == nil {
		return
	}
	if err := e.broker.Publish(ctx, gameID); err != nil {
		e.logger.Warn("publish grid change failed", zap.String("game_id", gameID), zap.Error(err))
	}
}

// notify forwards an event and logs, never returns, delivery errors.
func (e *Engine) notify(ctx context.Context, ev queue.NotificationEvent) bool {
	if e.notifier == nil {
		return false
	}
	if ev.CreatedAt == "" {
		ev.CreatedAt = e.clock().Format(time.RFC3339)
	}
	if err := e.notifier.Notify(ctx, ev); err != nil {
		e.logger.Error("notification failed",
			zap.String("type", string(ev.Type)),
			zap.String("game_id", ev.GameID),
			zap.String("recipient", ev.RecipientEmail),
			zap.Error(err))
		return false
	}
	return true
}
