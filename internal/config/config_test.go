package config

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"APP_ENV": "test", "APP_PORT": "8080", "DB_USER": "squares", "DB_HOST": "localhost",
		"DB_PORT": "3306", "DB_NAME": "squares", "JWT_SECRET": "s3cret",
		"ACCESS_TOKEN_TTL_MIN": "15", "REFRESH_TOKEN_TTL_DAYS": "7", "BCRYPT_COST": "4",
	} {
		t.Setenv(k, v)
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	cfg := Load()
	assert.Equal(t, "http://localhost:8080", cfg.AppURL)
	assert.Equal(t, "s3cret", cfg.GameAccessSecret)
	assert.Equal(t, 24*time.Hour, cfg.GameAccessTTL)
	assert.False(t, cfg.RequireActivation)
	assert.Empty(t, cfg.CronSecret)
	assert.True(t, cfg.Sweep.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, 30*time.Second, cfg.Feed.Interval)
	assert.Equal(t, 4, cfg.BcryptCost)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_URL", "https://squares.example")
	t.Setenv("GAME_REQUIRE_ACTIVATION", "yes")
	t.Setenv("SWEEP_INTERVAL", "10ms")
	t.Setenv("FEED_INTERVAL", "garbage")
	t.Setenv("AMQP_URL", "amqp://mq:5672/")

	cfg := Load()
	assert.Equal(t, "https://squares.example", cfg.AppURL)
	assert.True(t, cfg.RequireActivation)
	assert.Equal(t, time.Second, cfg.Sweep.Interval, "interval is clamped")
	assert.Equal(t, 30*time.Second, cfg.Feed.Interval, "unparsable values fall back")
	assert.Equal(t, "amqp://mq:5672/", cfg.RabbitURL)
}

func TestRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1m")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	rl := LoadRateLimitConfig()
	assert.Equal(t, 1, rl.Capacity)
	assert.Equal(t, 5*time.Minute, rl.TTL)
	assert.Equal(t, "user_route", rl.KeyStrategy)
}

func TestAuthRateLimitIsSeparate(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "99")
	t.Setenv("AUTH_RATE_LIMIT_KEY_STRATEGY", "ip")
	rl := LoadAuthRateLimitConfig()
	assert.Equal(t, 10, rl.Capacity)
	assert.Equal(t, "ip", rl.KeyStrategy)
	assert.Equal(t, "squares:rl:auth", rl.Prefix)
}

func TestCacheMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head,post")
	c := LoadCacheConfig()
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, c.Methods)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	t.Setenv("REDIS_ADDR", addr)
	client, err := NewRedisClient(context.Background())
	require.NoError(t, err)
	defer client.Close()

	mr.Close()
	t.Setenv("REDIS_URL", "redis://"+addr+"/0")
	_, err = NewRedisClient(context.Background())
	assert.Error(t, err)
}

func TestDBPoolClamps(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "4")
	t.Setenv("DB_MAX_IDLE_CONNS", "10")
	p := LoadDBPoolConfig()
	assert.Equal(t, 4, p.MaxOpen)
	assert.Equal(t, 4, p.MaxIdle)
	assert.Equal(t, 5*time.Second, p.PingTimeout)
}
