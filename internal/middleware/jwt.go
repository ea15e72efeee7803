package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/tour-booking/internal/model"
    "github.com/iliyamo/tour-booking/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores the caller's id, email and role in the request context.  The
// provided secret must match the one used when issuing tokens.  Handlers
// read the identity back with ActorFrom.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
            }
            raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

            id, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
            }
            role, err := model.ParseRole(id.Role)
            if err != nil {
                return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
            }

            c.Set(ctxUserID, id.UserID)
            c.Set(ctxEmail, id.Email)
            c.Set(ctxRole, role)
            return next(c)
        }
    }
}
