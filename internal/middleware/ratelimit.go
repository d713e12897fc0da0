package middleware

import (
    "context"
    "fmt"
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/charmbracelet/log"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/brt-fare-chart/internal/config"
)

// fareBucketScript takes one token from the bucket at KEYS[1], refilling it
// in whole steps first.
// ARGV: now_ms, capacity, refill_tokens, refill_every_ms, ttl_ms.
// Returns {allowed 0|1, tokens left, wait_ms}.
var fareBucketScript = redis.NewScript(`
local now, capacity = tonumber(ARGV[1]), tonumber(ARGV[2])
local refill, every = tonumber(ARGV[3]), tonumber(ARGV[4])

local saved = redis.call('HMGET', KEYS[1], 'tokens', 'at')
local tokens = tonumber(saved[1]) or capacity
local at = tonumber(saved[2]) or now

if every > 0 and refill > 0 then
    local steps = math.floor(math.max(0, now - at) / every)
    if steps > 0 then
        tokens = math.min(capacity, tokens + steps * refill)
        at = at + steps * every
    end
end

local ok, wait = 0, 0
if tokens >= 1 then
    ok = 1
    tokens = tokens - 1
else
    wait = math.max(0, every - (now - at))
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'at', at)
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return {ok, tokens, wait}
`)

// bucketVerdict is the outcome of taking one token.
type bucketVerdict struct {
    Allowed    bool
    Remaining  int64
    RetryAfter time.Duration
}

// takeFunc takes a token from the bucket named key.
type takeFunc func(ctx context.Context, key string) (bucketVerdict, error)

// NewTokenBucket limits fare API requests per client with a token bucket kept
// in Redis.  Without Redis, or when Redis errors, requests are let through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, logger *log.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    take := func(ctx context.Context, key string) (bucketVerdict, error) {
        res, err := fareBucketScript.Run(ctx, rdb, []string{key},
            time.Now().UnixMilli(),
            cfg.Capacity,
            cfg.RefillTokens,
            cfg.RefillInterval.Milliseconds(),
            cfg.TTL.Milliseconds(),
        ).Result()
        if err != nil {
            return bucketVerdict{}, err
        }
        return readVerdict(res)
    }
    return limitWith(cfg, take, logger)
}

func limitWith(cfg config.RateLimitConfig, take takeFunc, logger *log.Logger) echo.MiddlewareFunc {
    if logger == nil { logger = log.Default() }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := rateKey(cfg, c)
            v, err := take(c.Request().Context(), key)
            if err != nil {
                if cfg.Debug {
                    logger.Warn("ratelimit: bucket unavailable", "key", key, "err", err)
                }
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(v.Remaining, 10))
            if v.Allowed {
                return next(c)
            }

            secs := int(math.Ceil(v.RetryAfter.Seconds()))
            h.Set("Retry-After", strconv.Itoa(secs))
            if cfg.Debug {
                logger.Info("ratelimit: blocked", "key", key, "retry_after", v.RetryAfter)
            }
            return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "Too many requests"})
        }
    }
}

// readVerdict decodes the {allowed, remaining, wait_ms} reply of fareBucketScript.
func readVerdict(res any) (bucketVerdict, error) {
    arr, ok := res.([]any)
    if !ok || len(arr) != 3 {
        return bucketVerdict{}, fmt.Errorf("ratelimit: unexpected script reply %#v", res)
    }
    var n [3]int64
    for i, x := range arr {
        v, ok := x.(int64)
        if !ok {
            return bucketVerdict{}, fmt.Errorf("ratelimit: reply field %d is %T", i, x)
        }
        n[i] = v
    }
    return bucketVerdict{
        Allowed:    n[0] == 1,
        Remaining:  n[1],
        RetryAfter: time.Duration(max(n[2], 0)) * time.Millisecond,
    }, nil
}

// rateKey names the bucket for a request: the client IP, the fare endpoint
// ("stops", "fare", "download-excel"), or both.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
    client := c.RealIP()
    if client == "" { client = "unknown" }
    endpoint := strings.Trim(strings.TrimPrefix(c.Path(), "/api"), "/")
    if endpoint == "" { endpoint = "root" }

    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        return cfg.Prefix + ":" + client
    case "route":
        return cfg.Prefix + ":" + endpoint
    default: // "ip_route"
        return cfg.Prefix + ":" + endpoint + ":" + client
    }
}
