package config

import "time"

// CacheConfig defines settings for the versioned response cache.  When
// Enabled is false or no Redis client is configured, caching is disabled
// and every read goes to the store.  TTL bounds the lifetime of a payload;
// stale versions are never read again and simply expire.  MaxBodyBytes
// caps the size of a cached response.
type CacheConfig struct {
    Enabled      bool
    TTL          time.Duration
    MaxBodyBytes int
}

// LoadCacheConfig reads CACHE_ENABLED, CACHE_TTL and CACHE_MAX_BODY_BYTES.
func LoadCacheConfig() CacheConfig {
    c := CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        TTL:          envDur("CACHE_TTL", 5*time.Minute),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
    }
    if c.TTL <= 0 {
        c.TTL = 5 * time.Minute
    }
    if c.MaxBodyBytes <= 0 {
        c.MaxBodyBytes = 1 << 20
    }
    return c
}
