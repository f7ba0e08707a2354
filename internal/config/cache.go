package config

import (
	"strings"
	"time"
)

// CacheConfig drives middleware.NewRedisCache, mounted on the public
// join-code preview only.  Grid reads are never cached.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads CACHE_*.  Only safe methods can be cached; any
// other name in CACHE_METHODS is dropped.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      parseMethods(envStr("CACHE_METHODS", "GET")),
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_params"),
		Prefix:       envStr("CACHE_PREFIX", "squares:cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 64<<10),
	}
}

func parseMethods(list string) map[string]bool {
	out := make(map[string]bool, 2)
	for _, f := range strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == ' ' }) {
		switch m := strings.ToUpper(f); m {
		case "GET", "HEAD":
			out[m] = true
		}
	}
	return out
}
