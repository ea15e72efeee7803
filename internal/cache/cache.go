// Package cache implements version-counter invalidation on top of Redis.
//
// Every logical group of cached reads (a "scope" such as all tours, or the
// reviews of one tour) owns an integer counter stored under
// "{scope}:{id}:v".  Payloads are stored under
// "{scope}:{id}:v:{version}[:variant]", so bumping the counter makes every
// previously cached variant unreachable without enumerating or deleting
// keys.  Orphaned payloads expire through their TTL.
//
// The cache is an optimization only.  A nil Redis client turns every
// method into a no-op and Redis failures are logged and swallowed, so
// callers never fail because the cache is unavailable.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
)

// Scope identifies one version counter.
type Scope struct {
	Name string
	ID   string
}

// Common scopes.
func AllTours() Scope              { return Scope{Name: "tours", ID: "all"} }
func Tour(id uint64) Scope         { return Scope{Name: "tours", ID: strconv.FormatUint(id, 10)} }
func TourReviews(id uint64) Scope  { return Scope{Name: "reviews:tour", ID: strconv.FormatUint(id, 10)} }
func GuideReviews(id uint64) Scope { return Scope{Name: "reviews:guide", ID: strconv.FormatUint(id, 10)} }

func (s Scope) counterKey() string { return s.Name + ":" + s.ID + ":v" }

// Cache reads and bumps version counters and stores versioned payloads.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// DefaultTTL bounds the life of payloads when New is given ttl <= 0.
const DefaultTTL = 5 * time.Minute

// New returns a Cache over rdb.  rdb may be nil.
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// Enabled reports whether a Redis client is attached.
func (c *Cache) Enabled() bool { return c != nil && c.rdb != nil }

// Version returns the current counter for s.  Absent counters, and any
// Redis failure, read as 1.
func (c *Cache) Version(ctx context.Context, s Scope) int64 {
	if !c.Enabled() {
		return 1
	}
	v, err := c.rdb.Get(ctx, s.counterKey()).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("cache: read version %s: %v", s.counterKey(), err)
		}
		return 1
	}
	return v
}

// Bump increments the counters of every scope.  An absent counter is
// seeded with its default first so the increment always moves past the
// version readers have been using.
func (c *Cache) Bump(ctx context.Context, scopes ...Scope) {
	if !c.Enabled() || len(scopes) == 0 {
		return
	}
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, s := range scopes {
			p.SetNX(ctx, s.counterKey(), 1, 0)
			p.Incr(ctx, s.counterKey())
		}
		return nil
	})
	if err != nil {
		log.Warnf("cache: bump %d scope(s): %v", len(scopes), err)
	}
}

// Key returns the payload key for s at its current version.  variant
// distinguishes cached shapes of the same scope (page, filters).
func (c *Cache) Key(ctx context.Context, s Scope, variant string) string {
	k := s.counterKey() + ":" + strconv.FormatInt(c.Version(ctx, s), 10)
	if variant != "" {
		k += ":" + variant
	}
	return k
}

// GetBytes returns the payload stored under key.
func (c *Cache) GetBytes(ctx context.Context, key string) ([]byte, bool) {
	if !c.Enabled() {
		return nil, false
	}
	bs, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("cache: get %s: %v", key, err)
		}
		return nil, false
	}
	return bs, true
}

// SetBytes stores payload under key with the cache TTL.
func (c *Cache) SetBytes(ctx context.Context, key string, payload []byte) {
	if !c.Enabled() {
		return
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		log.Warnf("cache: set %s: %v", key, err)
	}
}

// GetJSON decodes the payload under key into dst.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) bool {
	bs, ok := c.GetBytes(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(bs, dst); err != nil {
		log.Warnf("cache: decode %s: %v", key, err)
		return false
	}
	return true
}

// SetJSON encodes v and stores it under key.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) {
	if !c.Enabled() {
		return
	}
	bs, err := json.Marshal(v)
	if err != nil {
		log.Warnf("cache: encode %s: %v", key, err)
		return
	}
	c.SetBytes(ctx, key, bs)
}
