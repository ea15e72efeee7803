package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/model"
)

// RegisterTourist registers endpoints that require the TOURIST role:
// booking a tour, paying for it and reviewing it.
func RegisterTourist(e *echo.Echo, d Deps, h handlers) {
	g := authed(e, d, model.RoleTourist)
	g.POST("/bookings", h.bookings.Create)
	g.POST("/bookings/:id/payment", h.bookings.InitiatePayment)
	g.POST("/reviews", h.reviews.Create)
}
