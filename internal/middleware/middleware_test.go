package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/tour-booking/internal/cache"
    "github.com/iliyamo/tour-booking/internal/config"
    "github.com/iliyamo/tour-booking/internal/model"
    "github.com/iliyamo/tour-booking/internal/utils"
)

const secret = "test-secret"

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
    t.Helper()
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = rdb.Close() })
    return mr, rdb
}

func do(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(method, path, nil)
    if token != "" {
        req.Header.Set("Authorization", "Bearer "+token)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func token(t *testing.T, id uint64, role model.Role) string {
    t.Helper()
    at, err := utils.NewAccessToken(secret, id, "u@example.com", string(role), 5)
    if err != nil {
        t.Fatal(err)
    }
    return at.Token
}

func TestJWTAuthAndRequireRole(t *testing.T) {
    e := echo.New()
    e.GET("/guide", func(c echo.Context) error {
        a, ok := ActorFrom(c)
        if !ok {
            return c.NoContent(http.StatusTeapot)
        }
        return c.String(http.StatusOK, a.Email+"/"+string(a.Role))
    }, JWTAuth(secret), RequireRole(model.RoleGuide, model.RoleAdmin))

    cases := []struct {
        name  string
        token string
        want  int
    }{
        {"no token", "", http.StatusUnauthorized},
        {"garbage", "not.a.jwt", http.StatusUnauthorized},
        {"wrong role", token(t, 1, model.RoleTourist), http.StatusForbidden},
        {"guide", token(t, 2, model.RoleGuide), http.StatusOK},
        {"admin", token(t, 3, model.RoleAdmin), http.StatusOK},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            rec := do(e, http.MethodGet, "/guide", tc.token)
            if rec.Code != tc.want {
                t.Fatalf("want %d, got %d (%s)", tc.want, rec.Code, rec.Body.String())
            }
        })
    }

    rec := do(e, http.MethodGet, "/guide", token(t, 2, model.RoleGuide))
    if rec.Body.String() != "u@example.com/GUIDE" {
        t.Fatalf("identity not on context: %q", rec.Body.String())
    }
}

func TestResponseCacheFollowsScopeVersion(t *testing.T) {
    _, rdb := newRedis(t)
    store := cache.New(rdb, time.Minute)
    cfg := config.CacheConfig{Enabled: true, TTL: time.Minute, MaxBodyBytes: 1 << 20}

    calls := 0
    e := echo.New()
    e.GET("/v1/tours", func(c echo.Context) error {
        calls++
        return c.JSON(http.StatusOK, map[string]int{"calls": calls})
    }, ResponseCache(cfg, store, func(echo.Context) cache.Scope { return cache.AllTours() }))

    first := do(e, http.MethodGet, "/v1/tours?page=1", "")
    if first.Header().Get("X-Cache") != "MISS" {
        t.Fatalf("first request: want MISS, got %q", first.Header().Get("X-Cache"))
    }
    second := do(e, http.MethodGet, "/v1/tours?page=1", "")
    if second.Header().Get("X-Cache") != "HIT" || second.Body.String() != first.Body.String() || calls != 1 {
        t.Fatalf("second request should be served from cache: %q calls=%d", second.Header().Get("X-Cache"), calls)
    }
    if do(e, http.MethodGet, "/v1/tours?page=2", "").Header().Get("X-Cache") != "MISS" {
        t.Fatal("another query is another variant")
    }

    store.Bump(t.Context(), cache.AllTours())
    third := do(e, http.MethodGet, "/v1/tours?page=1", "")
    if third.Header().Get("X-Cache") != "MISS" || calls != 3 {
        t.Fatalf("bumped scope must miss: %q calls=%d", third.Header().Get("X-Cache"), calls)
    }
}

func TestResponseCacheSkipsErrors(t *testing.T) {
    _, rdb := newRedis(t)
    store := cache.New(rdb, time.Minute)
    cfg := config.CacheConfig{Enabled: true, MaxBodyBytes: 1 << 20}

    calls := 0
    e := echo.New()
    e.GET("/v1/tours/:slug", func(c echo.Context) error {
        calls++
        return echo.NewHTTPError(http.StatusNotFound, "tour not found")
    }, ResponseCache(cfg, store, func(echo.Context) cache.Scope { return cache.AllTours() }))

    do(e, http.MethodGet, "/v1/tours/missing", "")
    do(e, http.MethodGet, "/v1/tours/missing", "")
    if calls != 2 {
        t.Fatalf("error responses must not be cached, calls=%d", calls)
    }
}

func TestResponseCacheWithoutRedis(t *testing.T) {
    cfg := config.CacheConfig{Enabled: true}
    e := echo.New()
    e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
        ResponseCache(cfg, cache.New(nil, 0), func(echo.Context) cache.Scope { return cache.AllTours() }))
    rec := do(e, http.MethodGet, "/x", "")
    if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "" {
        t.Fatalf("disabled cache must pass through: %d %q", rec.Code, rec.Header().Get("X-Cache"))
    }
}

func TestTokenBucket(t *testing.T) {
    _, rdb := newRedis(t)
    cfg := config.RateLimitConfig{
        Enabled: true, TTL: 2 * time.Hour, KeyStrategy: "ip", Prefix: "rl",
        API: config.Bucket{Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour},
    }
    e := echo.New()
    ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
    e.GET("/v1/payment/success", ok, NewTokenBucket(cfg, rdb, "payment"))
    e.GET("/v1/tours", ok, NewTokenBucket(cfg, rdb, "api"))

    for i := 0; i < 2; i++ {
        if rec := do(e, http.MethodGet, "/v1/payment/success", ""); rec.Code != http.StatusNoContent {
            t.Fatalf("request %d: got %d", i+1, rec.Code)
        }
    }
    rec := do(e, http.MethodGet, "/v1/payment/success", "")
    if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
        t.Fatalf("third request: want 429 with Retry-After, got %d", rec.Code)
    }
    if rec := do(e, http.MethodGet, "/v1/tours", ""); rec.Code != http.StatusNoContent {
        t.Fatalf("separate bucket: got %d", rec.Code)
    }
}

func TestTokenBucketFailsOpen(t *testing.T) {
    mr, rdb := newRedis(t)
    cfg := config.RateLimitConfig{Enabled: true, TTL: time.Hour, Prefix: "rl", API: config.Bucket{Capacity: 1}}
    e := echo.New()
    e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewTokenBucket(cfg, rdb, "api"))
    mr.Close()
    for i := 0; i < 3; i++ {
        if rec := do(e, http.MethodGet, "/x", ""); rec.Code != http.StatusNoContent {
            t.Fatalf("redis down must not block: got %d", rec.Code)
        }
    }
}

func TestTokenBucketPerBucketSize(t *testing.T) {
    _, rdb := newRedis(t)
    cfg := config.RateLimitConfig{
        Enabled: true, TTL: time.Hour, KeyStrategy: "route", Prefix: "rl",
        API:     config.Bucket{Capacity: 1, RefillInterval: time.Hour},
        Payment: config.Bucket{Capacity: 3, RefillInterval: time.Hour},
    }
    e := echo.New()
    ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
    e.GET("/v1/payment/fail", ok, NewTokenBucket(cfg, rdb, "payment"))

    for i := 0; i < 3; i++ {
        if rec := do(e, http.MethodGet, "/v1/payment/fail", ""); rec.Code != http.StatusNoContent {
            t.Fatalf("request %d within the payment bucket: got %d", i+1, rec.Code)
        }
    }
    rec := do(e, http.MethodGet, "/v1/payment/fail", "")
    if rec.Code != http.StatusTooManyRequests || rec.Header().Get("X-RateLimit-Limit") != "3" {
        t.Fatalf("want 429 with limit 3, got %d %q", rec.Code, rec.Header().Get("X-RateLimit-Limit"))
    }
}

func TestRateKey(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/v1/bookings/my", nil)
    req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
    c := e.NewContext(req, httptest.NewRecorder())
    c.SetPath("/v1/bookings/my")
    c.Set(ctxUserID, uint64(9))

    cases := map[string]string{
        "ip":            "rl:api:ip:10.0.0.7",
        "user_route":    "rl:api:user:9:route:GET /v1/bookings/my",
        "":              "rl:api:ip:10.0.0.7:user:9:route:GET /v1/bookings/my",
        "ip_user_route": "rl:api:ip:10.0.0.7:user:9:route:GET /v1/bookings/my",
    }
    for strategy, want := range cases {
        got := rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}, "api", c)
        if got != want {
            t.Errorf("%q: want %s, got %s", strategy, want, got)
        }
    }
}
