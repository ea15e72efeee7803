package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/model"
)

// RegisterAdmin registers the admin-only listings and account management.
func RegisterAdmin(e *echo.Echo, d Deps, h handlers) {
	g := authed(e, d, model.RoleAdmin)
	g.GET("/admin/bookings", h.bookings.All)
	g.GET("/admin/reviews", h.reviews.All)
	g.GET("/admin/users", h.profile.All)
	g.PATCH("/admin/users/:id/lifecycle", h.profile.SetLifecycle)
}
