package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"                   // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // Recover, RequestID, Logger, ContextTimeout
	"github.com/redis/go-redis/v9"                  // shared client for cache and rate limits

	"github.com/iliyamo/tour-booking/internal/cache"
	"github.com/iliyamo/tour-booking/internal/config"
	"github.com/iliyamo/tour-booking/internal/handler"
	"github.com/iliyamo/tour-booking/internal/middleware"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
	"github.com/iliyamo/tour-booking/internal/service"
)

// Deps is everything the HTTP layer is built from.  Redis may be nil, in
// which case caching and rate limiting are off.
type Deps struct {
	Cfg      config.Config
	CacheCfg config.CacheConfig
	RateCfg  config.RateLimitConfig
	Store    repository.Store
	Redis    *redis.Client
	Cache    *cache.Cache
	Gateway  service.PaymentGateway
	Events   service.EventPublisher
	Health   handler.Health
}

// handlers groups one handler per resource.
type handlers struct {
	auth     *handler.AuthHandler
	profile  *handler.ProfileHandler
	tours    *handler.TourHandler
	bookings *handler.BookingHandler
	payments *handler.PaymentHandler
	reviews  *handler.ReviewHandler
	wishlist *handler.WishlistHandler
	messages *handler.MessageHandler
}

// New builds the Echo instance with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler(d.Cfg.Production())
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.Logger())
	e.Use(echomw.ContextTimeout(d.Cfg.RequestTimeout))

	h := handlers{
		auth:     handler.NewAuthHandler(d.Cfg, d.Store),
		profile:  handler.NewProfileHandler(service.NewUserService(d.Store)),
		tours:    handler.NewTourHandler(service.NewTourService(d.Store, d.Cache)),
		bookings: handler.NewBookingHandler(service.NewBookingService(d.Store, d.Gateway, d.Events, d.Cache)),
		payments: handler.NewPaymentHandler(service.NewPaymentService(d.Store, d.Events), d.Cfg.Payment),
		reviews:  handler.NewReviewHandler(service.NewReviewService(d.Store, d.Cache)),
		wishlist: handler.NewWishlistHandler(service.NewWishlistService(d.Store)),
		messages: handler.NewMessageHandler(service.NewMessageService(d.Store)),
	}

	RegisterRoutes(e, d.Health)
	RegisterAuth(e, h.auth)
	RegisterPublic(e, d, h)
	RegisterPayments(e, d, h)
	RegisterAccount(e, d, h)
	RegisterTourist(e, d, h)
	RegisterGuide(e, d, h)
	RegisterAdmin(e, d, h)
	return e
}

// RegisterRoutes registers the health check.
func RegisterRoutes(e *echo.Echo, health handler.Health) {
	e.GET("/healthz", health.Check)
}

// RegisterAuth registers the token endpoints under /v1/auth.  None of them
// require an existing access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// rotates the refresh token
	g.POST("/refresh", a.Refresh)
	// new access token, same refresh token
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)
}

// authed returns a /v1 group behind JWT auth, the API rate limit and,
// when roles are given, a role guard.
func authed(e *echo.Echo, d Deps, roles ...model.Role) *echo.Group {
	g := e.Group("/v1",
		middleware.JWTAuth(d.Cfg.JWTSecret),
		middleware.NewTokenBucket(d.RateCfg, d.Redis, "api"),
	)
	if len(roles) > 0 {
		g.Use(middleware.RequireRole(roles...))
	}
	return g
}
