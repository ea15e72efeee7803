package middleware // middleware provides shared request processing for handlers

import (
    "net/http" // http package defines standard HTTP status codes

    "github.com/labstack/echo/v4" // echo provides middleware chaining and context

    "github.com/iliyamo/tour-booking/internal/model"
)

// RequireRole returns a middleware function that enforces that the
// authenticated user has one of the specified roles.  It assumes JWTAuth
// ran first; a request without an identity is rejected with 401 and a
// request with any other role with 403.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
    allowed := make(map[model.Role]bool, len(roles))
    for _, r := range roles {
        allowed[r] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            a, ok := ActorFrom(c)
            if !ok {
                return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
            }
            if !allowed[a.Role] {
                return echo.NewHTTPError(http.StatusForbidden, "you are not allowed to access this resource")
            }
            return next(c)
        }
    }
}
