package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, time.Minute), mr
}

func TestVersionDefaultsToOne(t *testing.T) {
	c, _ := newTestCache(t)
	if v := c.Version(context.Background(), Tour(7)); v != 1 {
		t.Fatalf("want 1, got %d", v)
	}
	if k := c.Key(context.Background(), Tour(7), ""); k != "tours:7:v:1" {
		t.Fatalf("unexpected key %q", k)
	}
}

func TestBumpMakesOldKeysUnreachable(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	before := c.Key(ctx, AllTours(), "page=1")
	c.SetJSON(ctx, before, map[string]int{"n": 1})

	var got map[string]int
	if !c.GetJSON(ctx, c.Key(ctx, AllTours(), "page=1"), &got) || got["n"] != 1 {
		t.Fatalf("expected a hit before bump")
	}

	c.Bump(ctx, AllTours(), Tour(3))
	after := c.Key(ctx, AllTours(), "page=1")
	if after == before {
		t.Fatalf("key did not change after bump: %s", after)
	}
	if after != "tours:all:v:2:page=1" {
		t.Fatalf("unexpected key %q", after)
	}
	if c.GetJSON(ctx, after, &got) {
		t.Fatalf("expected a miss after bump")
	}
	if v := c.Version(ctx, Tour(3)); v != 2 {
		t.Fatalf("tour scope: want 2, got %d", v)
	}
}

func TestConcurrentBumpsAreCounted(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	c.Bump(ctx, TourReviews(1))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Bump(ctx, TourReviews(1))
		}()
	}
	wg.Wait()
	if v := c.Version(ctx, TourReviews(1)); v != 22 {
		t.Fatalf("want 22, got %d", v)
	}
}

func TestPayloadsCarryTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := c.Key(ctx, GuideReviews(4), "")
	c.SetBytes(ctx, key, []byte("x"))
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok := c.GetBytes(ctx, key); ok {
		t.Fatal("payload outlived its ttl")
	}
}

func TestUnavailableRedisNeverFails(t *testing.T) {
	c := New(nil, 0)
	ctx := context.Background()
	c.Bump(ctx, AllTours())
	c.SetJSON(ctx, "k", 1)
	if c.GetJSON(ctx, "k", new(int)) {
		t.Fatal("disabled cache returned a hit")
	}
	if v := c.Version(ctx, AllTours()); v != 1 {
		t.Fatalf("want 1, got %d", v)
	}

	broken, mr := newTestCache(t)
	mr.Close()
	broken.Bump(ctx, AllTours())
	if v := broken.Version(ctx, AllTours()); v != 1 {
		t.Fatalf("want 1 when redis is down, got %d", v)
	}
}
