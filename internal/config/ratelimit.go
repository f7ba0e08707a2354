package config

import "time"

// RateLimitConfig drives one Redis token bucket.  Capacity is the burst;
// RefillTokens are added every RefillInterval.  Keys older than TTL are
// left to expire.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string // ip | user | ip_route | ip_user_route | user_route
	Prefix         string
	Debug          bool   // expose the bucket key in X-RateLimit-Key
}

// LoadRateLimitConfig reads RATE_LIMIT_*: the bucket in front of square
// claims, joins and password attempts, keyed per user and route.
func LoadRateLimitConfig() RateLimitConfig {
	return loadRateLimit("RATE_LIMIT_", RateLimitConfig{
		Enabled:        true,
		Capacity:       20,
		RefillTokens:   1,
		RefillInterval: 3 * time.Second,
		TTL:            10 * time.Minute,
		KeyStrategy:    "user_route",
		Prefix:         "squares:rl",
	})
}

// LoadAuthRateLimitConfig reads AUTH_RATE_LIMIT_*: a tighter bucket for
// register, login and refresh, keyed by client address because those
// callers have no session yet.
func LoadAuthRateLimitConfig() RateLimitConfig {
	return loadRateLimit("AUTH_RATE_LIMIT_", RateLimitConfig{
		Enabled:        true,
		Capacity:       10,
		RefillTokens:   1,
		RefillInterval: 6 * time.Second,
		TTL:            15 * time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "squares:rl:auth",
	})
}

func loadRateLimit(prefix string, def RateLimitConfig) RateLimitConfig {
	c := RateLimitConfig{
		Enabled:        envBool(prefix+"ENABLED", def.Enabled),
		Capacity:       envInt(prefix+"CAPACITY", def.Capacity),
		RefillTokens:   envInt(prefix+"REFILL_TOKENS", def.RefillTokens),
		RefillInterval: envDur(prefix+"REFILL_INTERVAL", def.RefillInterval),
		TTL:            envDur(prefix+"TTL", def.TTL),
		KeyStrategy:    envStr(prefix+"KEY_STRATEGY", def.KeyStrategy),
		Prefix:         envStr(prefix+"PREFIX", def.Prefix),
		Debug:          envBool(prefix+"DEBUG", false),
	}
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	// a bucket must outlive a full refill or it resets early
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c
}
