package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/cache"
	"github.com/iliyamo/tour-booking/internal/middleware"
)

// RegisterPublic registers the unauthenticated catalogue.  Tour listing
// and detail responses are cached under the tours:all scope, which every
// tour and review write bumps; review listings are cached by the review
// service itself.
func RegisterPublic(e *echo.Echo, d Deps, h handlers) {
	allTours := middleware.ResponseCache(d.CacheCfg, d.Cache, func(echo.Context) cache.Scope { return cache.AllTours() })

	e.GET("/v1/tours", h.tours.Search, allTours)
	e.GET("/v1/tours/:slug", h.tours.BySlug, allTours)
	e.GET("/v1/tours/:id/reviews", h.reviews.ForTour)
	e.GET("/v1/guides/:id/reviews", h.reviews.ForGuide)
	e.POST("/v1/reviews/:id/helpful", h.reviews.Helpful)
}

// RegisterPayments registers the gateway callbacks.  The gateway may call
// back with GET or POST; both are accepted and rate limited on their own
// bucket.
func RegisterPayments(e *echo.Echo, d Deps, h handlers) {
	g := e.Group("/v1/payment", middleware.NewTokenBucket(d.RateCfg, d.Redis, "payment"))
	for path, fn := range map[string]echo.HandlerFunc{
		"/success": h.payments.Success,
		"/fail":    h.payments.Fail,
		"/cancel":  h.payments.Cancel,
	} {
		g.GET(path, fn)
		g.POST(path, fn)
	}
}
