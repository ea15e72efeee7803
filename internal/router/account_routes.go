package router

import (
	"github.com/labstack/echo/v4"
)

// RegisterAccount registers endpoints open to any authenticated user.
// Ownership is checked by the services.
func RegisterAccount(e *echo.Echo, d Deps, h handlers) {
	g := authed(e, d)
	g.GET("/me", h.profile.Me)
	g.PATCH("/me/profile", h.profile.Update)
	g.POST("/auth/change-password", h.auth.ChangePassword)

	g.GET("/bookings/my", h.bookings.Mine)
	g.GET("/bookings/:id", h.bookings.Get)
	g.GET("/payments/:bookingId", h.payments.ForBooking)

	g.GET("/wishlist", h.wishlist.List)
	g.POST("/wishlist/:tourId", h.wishlist.Add)
	g.DELETE("/wishlist/:tourId", h.wishlist.Remove)
	g.GET("/wishlist/:tourId/status", h.wishlist.Status)

	g.GET("/conversations", h.messages.Conversations)
	g.GET("/conversations/:id/messages", h.messages.Thread)
	g.POST("/messages", h.messages.Send)

	g.GET("/reviews/my", h.reviews.Mine)
	g.PATCH("/reviews/:id", h.reviews.Update)
	g.DELETE("/reviews/:id", h.reviews.Delete)
}
