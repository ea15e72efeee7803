package middleware

// identity.go defines the context keys JWTAuth fills in and the helpers
// handlers and other middleware use to read them back.

import (
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/tour-booking/internal/model"
    "github.com/iliyamo/tour-booking/internal/service"
)

const (
    ctxUserID = "user_id"
    ctxEmail  = "email"
    ctxRole   = "role"
)

// ActorFrom returns the authenticated identity stored by JWTAuth.  ok is
// false on routes that are not behind JWTAuth.
func ActorFrom(c echo.Context) (service.Actor, bool) {
    id, ok := c.Get(ctxUserID).(uint64)
    if !ok || id == 0 {
        return service.Actor{}, false
    }
    email, _ := c.Get(ctxEmail).(string)
    role, _ := c.Get(ctxRole).(model.Role)
    return service.Actor{ID: id, Email: email, Role: role}, true
}

// userID returns the caller's id as a string for rate-limit keys, or
// "guest" when no user is authenticated.
func userID(c echo.Context) string {
    if a, ok := ActorFrom(c); ok {
        return strconv.FormatUint(a.ID, 10)
    }
    return "guest"
}
