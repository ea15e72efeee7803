package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "fmt"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/tour-booking/internal/cache"
    "github.com/iliyamo/tour-booking/internal/config"
)

// recorder tees the response to the client and keeps up to limit bytes
// of the body for the cache.
type recorder struct {
    http.ResponseWriter
    status    int
    body      bytes.Buffer
    limit     int64
    truncated bool
}

func (r *recorder) WriteHeader(code int) {
    r.status = code
    r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
    if !r.truncated {
        if r.limit > 0 && int64(r.body.Len()+len(b)) > r.limit {
            r.truncated = true
            r.body.Reset()
        } else {
            r.body.Write(b)
        }
    }
    return r.ResponseWriter.Write(b)
}

// ScopeFunc names the cache scope a request reads.  Writes to the scope
// bump its version, which retires every response cached under it.
type ScopeFunc func(c echo.Context) cache.Scope

// variantOf identifies the response shape inside a scope: route, path
// params and query, hashed.
func variantOf(c echo.Context) string {
    r := c.Request()
    parts := []string{r.Method, c.Path()}
    for i, n := range c.ParamNames() {
        parts = append(parts, n+"="+c.ParamValues()[i])
    }
    parts = append(parts, r.URL.Query().Encode())
    sum := sha1.Sum([]byte(strings.Join(parts, "|")))
    return fmt.Sprintf("http:%x", sum[:])
}

// cachedResponse is the stored form of a response.
type cachedResponse struct {
    Status int         `json:"status"`
    Header http.Header `json:"header"`
    Body   []byte      `json:"body"`
}

// skipHeader reports headers that belong to one exchange only.
func skipHeader(k string) bool {
    switch http.CanonicalHeaderKey(k) {
    case echo.HeaderContentLength, echo.HeaderXRequestID, "X-Cache":
        return true
    }
    return false
}

// ResponseCache serves GET responses from the versioned cache.  The key is
// the scope's current version plus the request variant, so a bumped scope
// is never read again.  Only complete 200 responses are stored.
func ResponseCache(cfg config.CacheConfig, store *cache.Cache, scope ScopeFunc) echo.MiddlewareFunc {
    if !cfg.Enabled || !store.Enabled() {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if c.Request().Method != http.MethodGet {
                return next(c)
            }

            ctx := c.Request().Context()
            key := store.Key(ctx, scope(c), variantOf(c))

            var hit cachedResponse
            if store.GetJSON(ctx, key, &hit) && hit.Status != 0 {
                h := c.Response().Header()
                for k, vals := range hit.Header {
                    if skipHeader(k) {
                        continue
                    }
                    for _, v := range vals {
                        h.Add(k, v)
                    }
                }
                h.Set("X-Cache", "HIT")
                c.Response().WriteHeader(hit.Status)
                _, err := c.Response().Write(hit.Body)
                return err
            }

            rec := &recorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(cfg.MaxBodyBytes)}
            c.Response().Writer = rec
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if rec.status != http.StatusOK || rec.truncated {
                return nil
            }

            out := cachedResponse{Status: rec.status, Header: http.Header{}, Body: rec.body.Bytes()}
            for k, vals := range c.Response().Header() {
                if !skipHeader(k) {
                    out.Header[k] = append([]string(nil), vals...)
                }
            }
            store.SetJSON(context.WithoutCancel(ctx), key, out)
            return nil
        }
    }
}
