package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/model"
)

// RegisterGuide registers tour management and booking decisions.  Admins
// may act on any tour or booking; guides only on their own, which the
// services enforce.
func RegisterGuide(e *echo.Echo, d Deps, h handlers) {
	g := authed(e, d, model.RoleGuide, model.RoleAdmin)
	g.PATCH("/bookings/:id/status", h.bookings.UpdateStatus)

	guide := authed(e, d, model.RoleGuide)
	guide.GET("/guide/tours", h.tours.Mine)
	guide.POST("/guide/tours", h.tours.Create)
	guide.GET("/guide/bookings/pending", h.bookings.Pending)

	g.PATCH("/guide/tours/:id", h.tours.Update)
	g.DELETE("/guide/tours/:id", h.tours.Delete)
}
