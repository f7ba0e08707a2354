package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "grid:"

// Redis publishes signals on one pub/sub channel per game so every
// server process sees every change.
type Redis struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedis wraps a connected client.
func NewRedis(client *redis.Client, logger *zap.Logger) *Redis {
	if client == nil {
		panic("nil redis client passed to NewRedis")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, logger: logger}
}

func channelFor(gameID string) string { return channelPrefix + gameID }

func (b *Redis) Publish(ctx context.Context, gameID string) error {
	if err := b.client.Publish(ctx, channelFor(gameID), "changed").Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe returns once the subscription is confirmed by the server.  If
// it cannot be established the returned channel is already closed.
func (b *Redis) Subscribe(ctx context.Context, gameID string) (<-chan struct{}, func()) {
	out := make(chan struct{}, 1)
	ps := b.client.Subscribe(ctx, channelFor(gameID))

	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	_, err := ps.Receive(rctx)
	cancel()
	if err != nil {
		b.logger.Warn("redis subscribe failed", zap.String("game_id", gameID), zap.Error(err))
		_ = ps.Close()
		close(out)
		return out, func() {}
	}

	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-done:
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}
}

// Ledger is a ReminderLedger backed by SET NX with expiry, shared by
// every process that runs the sweeper.
type Ledger struct {
	client *redis.Client
	prefix string
}

// NewLedger returns a ledger whose keys start with prefix.
func NewLedger(client *redis.Client, prefix string) *Ledger {
	if client == nil {
		panic("nil redis client passed to NewLedger")
	}
	if prefix == "" {
		prefix = "reminder"
	}
	return &Ledger{client: client, prefix: prefix}
}

func (l *Ledger) Mark(ctx context.Context, gameID string, playerID uint64, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("%s:%s:%d", l.prefix, gameID, playerID)
	ok, err := l.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}
