package handler // declare the package name; contains HTTP handlers

import (
    "context"  // bounded dependency checks
    "net/http" // net/http provides status codes and response helpers
    "time"

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Pinger is any dependency that can report its reachability.
type Pinger interface {
    Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Health is the health-check endpoint used by load balancers and
// monitoring systems.  Required dependencies that fail turn the response
// into 503; optional ones (Redis) only report "degraded".
type Health struct {
    Required map[string]Pinger
    Optional map[string]Pinger
}

func (h Health) Check(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
    defer cancel()

    status, code := "ok", http.StatusOK
    deps := map[string]string{}
    for name, p := range h.Required {
        deps[name] = "up"
        if err := p.Ping(ctx); err != nil {
            deps[name] = "down"
            status, code = "down", http.StatusServiceUnavailable
        }
    }
    for name, p := range h.Optional {
        deps[name] = "up"
        if p == nil {
            deps[name] = "disabled"
            continue
        }
        if err := p.Ping(ctx); err != nil {
            deps[name] = "down"
            if code == http.StatusOK {
                status = "degraded"
            }
        }
    }
    return c.JSON(code, echo.Map{"status": status, "dependencies": deps})
}
