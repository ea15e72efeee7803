package middleware

import (
    "fmt"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/labstack/gommon/log"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/tour-booking/internal/config"
)

// takeToken refills the bucket at KEYS[1] for the whole intervals elapsed
// since its last refill, then takes one token if it can.
// ARGV: now_ms, capacity, refill_tokens, interval_ms, ttl_s.
// Returns {allowed (0|1), tokens left, ms until the next token}.
var takeToken = redis.NewScript(`
local now, cap, step, every, ttl =
    tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])

local st = redis.call('HMGET', KEYS[1], 'tokens', 'refilled_at')
local tokens, at = tonumber(st[1]), tonumber(st[2])
if not tokens or not at then
    tokens, at = cap, now
end

local n = math.floor(math.max(0, now - at) / every)
if n > 0 then
    tokens = math.min(cap, tokens + n * step)
    at = at + n * every
end

local ok, wait = 0, 0
if tokens > 0 then
    ok, tokens = 1, tokens - 1
else
    wait = math.max(0, every - (now - at))
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'refilled_at', at)
redis.call('EXPIRE', KEYS[1], ttl)
return {ok, tokens, wait}
`)

// NewTokenBucket limits requests with a Redis token bucket sized by
// cfg.For(bucket), so the payment callbacks and the API drain separate
// buckets.  Without Redis, or when disabled, requests pass through; Redis
// errors also let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, bucket string) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    size := cfg.For(bucket)
    ttl := int64(cfg.TTL / time.Second)
    if ttl < 1 {
        ttl = 1
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := rateKey(cfg, bucket, c)
            res, err := takeToken.Run(c.Request().Context(), rdb, []string{key},
                time.Now().UnixMilli(), size.Capacity, size.RefillTokens, size.RefillInterval.Milliseconds(), ttl,
            ).Int64Slice()
            if err != nil || len(res) != 3 {
                log.Warnf("ratelimit: %s: %v", key, err)
                return next(c)
            }
            allowed, left, waitMs := res[0] == 1, res[1], res[2]

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(size.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(left, 10))
            if allowed {
                return next(c)
            }

            retry := (waitMs + 999) / 1000
            h.Set("Retry-After", strconv.FormatInt(retry, 10))
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "success":     false,
                "message":     "too many requests, please try again later",
                "retry_after": retry,
            })
        }
    }
}

// rateKey is prefix:bucket followed by the parts named in the key
// strategy.
func rateKey(cfg config.RateLimitConfig, bucket string, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    parts := map[string]string{
        "ip":    ip,
        "user":  userID(c),
        "route": c.Request().Method + " " + c.Path(),
    }
    strategy := strings.ToLower(cfg.KeyStrategy)
    if strategy == "" {
        strategy = "ip_user_route"
    }

    var b strings.Builder
    fmt.Fprintf(&b, "%s:%s", cfg.Prefix, bucket)
    for _, name := range strings.Split(strategy, "_") {
        if v, ok := parts[name]; ok {
            fmt.Fprintf(&b, ":%s:%s", name, v)
        }
    }
    return b.String()
}
