package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/football-squares/internal/config"
)

// claimScript is a token bucket refilled continuously at refill tokens
// per interval_ms.  Tokens are kept fractional so short bursts below one
// interval still earn partial credit.  Replies {allowed, floor(tokens),
// retry_after_ms}.
var claimScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local cap = tonumber(ARGV[2])
local rate = tonumber(ARGV[3]) / tonumber(ARGV[4])
local ttl_ms = tonumber(ARGV[5])

local tokens = tonumber(redis.call('HGET', KEYS[1], 't'))
local seen = tonumber(redis.call('HGET', KEYS[1], 'ts'))
if not tokens or not seen then
  tokens, seen = cap, now
end
if now > seen then
  tokens = math.min(cap, tokens + (now - seen) * rate)
end

local ok, wait = 0, 0
if tokens >= 1 then
  ok, tokens = 1, tokens - 1
else
  wait = math.ceil((1 - tokens) / rate)
end
redis.call('HSET', KEYS[1], 't', tostring(tokens), 'ts', now)
redis.call('PEXPIRE', KEYS[1], ttl_ms)
return {ok, math.floor(tokens), wait}
`)

type bucketResult struct {
	allowed   bool
	remaining int64
	retry     time.Duration
}

func takeToken(ctx context.Context, rdb *redis.Client, cfg config.RateLimitConfig, key string, now time.Time) (bucketResult, error) {
	vals, err := claimScript.Run(ctx, rdb, []string{key},
		now.UnixMilli(), cfg.Capacity, cfg.RefillTokens,
		cfg.RefillInterval.Milliseconds(), cfg.TTL.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return bucketResult{}, err
	}
	if len(vals) != 3 {
		return bucketResult{}, fmt.Errorf("unexpected token bucket reply %v", vals)
	}
	return bucketResult{
		allowed:   vals[0] == 1,
		remaining: vals[1],
		retry:     time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// NewTokenBucket limits requests per key with a bucket kept in Redis so
// every server process draws from the same budget.  A nil client or a
// disabled config turns it into a pass-through; Redis errors let the
// request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			res, err := takeToken(c.Request().Context(), rdb, cfg, key, time.Now())
			if err != nil {
				if cfg.Debug {
					Logger(c).Warn("ratelimit redis error", zap.String("key", key), zap.Error(err))
				}
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if !res.allowed {
				secs := int(math.Ceil(res.retry.Seconds()))
				h.Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "rate_limited",
					"message":     "too many requests, slow down",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	route := c.Request().Method + " " + c.Path()
	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", userKey(c))
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	case "ip_user_route":
		parts = append(parts, "ip", ip, "user", userKey(c), "route", route)
	default: // "user_route"
		parts = append(parts, "user", userKey(c), "route", route)
	}
	return strings.Join(parts, ":")
}
