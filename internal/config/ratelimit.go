package config

import (
    "os"
    "strconv"
    "time"
)

// Bucket sizes one token bucket: Capacity requests in a burst, then
// RefillTokens more every RefillInterval.
type Bucket struct {
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
}

func (b Bucket) normalized() Bucket {
    if b.Capacity < 1 {
        b.Capacity = 1
    }
    if b.RefillTokens < 1 {
        b.RefillTokens = 1
    }
    if b.RefillInterval <= 0 {
        b.RefillInterval = time.Second
    }
    return b
}

// RateLimitConfig configures the Redis token buckets.  API covers the
// authenticated routes.  Payment covers the gateway callbacks, which come
// from a handful of gateway addresses and get their own budget.
type RateLimitConfig struct {
    Enabled     bool
    KeyStrategy string // ip | user | route | ip_user | ip_route | user_route | ip_user_route
    Prefix      string
    TTL         time.Duration // lifetime of an idle bucket
    API         Bucket
    Payment     Bucket
}

// For returns the bucket named name; unknown names use the API bucket.
func (c RateLimitConfig) For(name string) Bucket {
    if name == "payment" && c.Payment.Capacity > 0 {
        return c.Payment.normalized()
    }
    return c.API.normalized()
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.  RATE_LIMIT_BURST and
// RATE_LIMIT_REFILL_EVERY are shorthands for the API bucket's capacity and
// a one-token refill period.
func LoadRateLimitConfig() RateLimitConfig {
    c := RateLimitConfig{
        Enabled:     envBool("RATE_LIMIT_ENABLED", true),
        KeyStrategy: envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
        Prefix:      envStr("RATE_LIMIT_PREFIX", "rl"),
        TTL:         envDur("RATE_LIMIT_TTL", 10*time.Minute),
        API: Bucket{
            Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
            RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
            RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        },
        Payment: Bucket{
            Capacity:       envInt("RATE_LIMIT_PAYMENT_CAPACITY", 20),
            RefillTokens:   envInt("RATE_LIMIT_PAYMENT_REFILL_TOKENS", 1),
            RefillInterval: envDur("RATE_LIMIT_PAYMENT_REFILL_INTERVAL", 3*time.Second),
        },
    }
    if b := envInt("RATE_LIMIT_BURST", -1); b > 0 {
        c.API.Capacity = b
    }
    if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
        c.API.RefillTokens, c.API.RefillInterval = 1, every
    }
    c.API, c.Payment = c.API.normalized(), c.Payment.normalized()

    // an idle bucket must outlive a few refills or it resets to full early
    longest := c.API.RefillInterval
    if c.Payment.RefillInterval > longest {
        longest = c.Payment.RefillInterval
    }
    if c.TTL < 5*longest {
        c.TTL = 5 * longest
    }
    return c
}

func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    switch os.Getenv(k) {
    case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
        return true
    case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
        return n
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
        return dur
    }
    return d
}
