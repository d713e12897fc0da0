package config

import (
    "strings"
    "time"
)

// CacheConfig defines settings for the response cache middleware.  Responses
// from the fare API never change while the process runs, so entries can live
// for a long time.  When Redis is unreachable the middleware falls back to an
// in-process LRU holding at most LocalSize entries; LocalSize <= 0 disables
// the fallback.  KeyStrategy determines which parts of the request
// contribute to the cache key.
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool
    TTL          time.Duration
    KeyStrategy  string
    Prefix       string
    MaxBodyBytes int
    LocalSize    int
}

// LoadCacheConfig reads environment variables to build a CacheConfig.  Defaults
// are used when variables are not set.  All methods are upper-cased.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        Methods:      parseMethods(envStr("CACHE_METHODS", "GET")),
        TTL:          envDur("CACHE_TTL", 10*time.Minute),
        KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
        Prefix:       envStr("CACHE_PREFIX", "fares"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1048576),
        LocalSize:    envInt("CACHE_LOCAL_SIZE", 1024),
    }
}

func parseMethods(s string) map[string]bool {
    m := map[string]bool{}
    for _, p := range strings.Split(s, ",") {
        p = strings.TrimSpace(strings.ToUpper(p))
        if p != "" {
            m[p] = true
        }
    }
    return m
}
