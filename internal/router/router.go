// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/trainer-booking/internal/config"
	"github.com/iliyamo/trainer-booking/internal/handler"
	"github.com/iliyamo/trainer-booking/internal/middleware"
	"github.com/iliyamo/trainer-booking/internal/model"
)

// Handlers bundles every HTTP handler the API exposes.
type Handlers struct {
	Auth     *handler.AuthHandler
	Bookings *handler.BookingHandler
	Credits  *handler.CreditHandler
	Public   *handler.PublicHandler
	Webhooks *handler.WebhookHandler
	Health   echo.HandlerFunc
}

// Options carries the settings of the Redis-backed middleware.  A nil
// Redis client disables caching and rate limiting.
type Options struct {
	JWTSecret string
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	Log       *zap.Logger
}

// Register mounts all routes on e.
func Register(e *echo.Echo, h Handlers, opt Options) {
	if opt.Log == nil {
		opt.Log = zap.NewNop()
	}
	if h.Health != nil {
		e.GET("/healthz", h.Health)
	}
	if h.Auth != nil {
		RegisterAuth(e, h.Auth, opt.JWTSecret)
	}
	if h.Bookings != nil && h.Credits != nil {
		RegisterStaff(e, h.Bookings, h.Credits, opt.JWTSecret)
	}
	if h.Public != nil {
		RegisterPublic(e, h.Public, opt)
	}
	if h.Webhooks != nil {
		e.POST("/v1/webhooks/stripe", h.Webhooks.StripeEvent)
	}
}

// RegisterAuth registers the sign-in routes under /v1/auth and the
// account routes that need a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh) // rotates the refresh token
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
	auth.POST("/staff", a.CreateStaff, middleware.RequireRole(model.RoleAdmin))
}

// RegisterStaff registers the studio-scoped booking and credit routes.
// All routes require a JWT carrying the TRAINER or ADMIN role.
func RegisterStaff(e *echo.Echo, b *handler.BookingHandler, cr *handler.CreditHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleTrainer, model.RoleAdmin),
	)

	// ---- Bookings ----
	g.GET("/bookings", b.List)
	g.POST("/bookings", b.Create)
	g.GET("/bookings/:id", b.Get)
	g.PUT("/bookings/:id", b.Update)
	g.DELETE("/bookings/:id", b.Delete) // ?hardDelete=true is ADMIN only, checked in handler
	g.POST("/bookings/:id/confirm", b.Confirm)
	g.POST("/bookings/:id/check-in", b.CheckIn)
	g.POST("/bookings/:id/complete", b.Complete)
	g.POST("/bookings/:id/cancel", b.Cancel)

	// ---- Trainers ----
	g.GET("/trainers/:id/availability", b.TrainerAvailability)

	// ---- Credits ----
	g.GET("/clients/:id/credits", cr.Credits)
	g.POST("/clients/:id/packages", cr.AssignPackage)
}

// RegisterPublic registers the unauthenticated booking page routes.
// Booking creation is rate limited; availability reads are cached.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, opt Options) {
	g := e.Group("/v1/public")
	g.POST("/studios/:studioId/bookings", p.CreateBooking,
		middleware.RateLimit(opt.RateLimit, opt.Redis, opt.Log))
	g.GET("/trainers/:id/availability", p.TrainerAvailability,
		middleware.ResponseCache(opt.Cache, opt.Redis, opt.Log))
}
