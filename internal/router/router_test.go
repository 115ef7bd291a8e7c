package router

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/trainer-booking/internal/config"
	"github.com/iliyamo/trainer-booking/internal/handler"
)

func TestRegisterMountsAPI(t *testing.T) {
	e := echo.New()
	Register(e, Handlers{
		Auth:     &handler.AuthHandler{},
		Bookings: &handler.BookingHandler{},
		Credits:  &handler.CreditHandler{},
		Public:   &handler.PublicHandler{},
		Webhooks: &handler.WebhookHandler{},
		Health:   handler.Health(nil),
	}, Options{JWTSecret: "s", Cache: config.CacheConfig{Enabled: true}, RateLimit: config.RateLimitConfig{Enabled: true}})

	got := map[string]bool{}
	for _, r := range e.Routes() {
		got[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"POST /v1/auth/login",
		"POST /v1/auth/refresh",
		"POST /v1/auth/logout",
		"GET /v1/me",
		"POST /v1/staff",
		"GET /v1/bookings",
		"POST /v1/bookings",
		"GET /v1/bookings/:id",
		"PUT /v1/bookings/:id",
		"DELETE /v1/bookings/:id",
		"POST /v1/bookings/:id/confirm",
		"POST /v1/bookings/:id/check-in",
		"POST /v1/bookings/:id/complete",
		"POST /v1/bookings/:id/cancel",
		"GET /v1/trainers/:id/availability",
		"GET /v1/clients/:id/credits",
		"POST /v1/clients/:id/packages",
		"POST /v1/public/studios/:studioId/bookings",
		"GET /v1/public/trainers/:id/availability",
		"POST /v1/webhooks/stripe",
	} {
		assert.True(t, got[want], "missing route %s", want)
	}
}

func TestRegisterSkipsMissingHandlers(t *testing.T) {
	e := echo.New()
	Register(e, Handlers{Health: handler.Health(nil)}, Options{})
	for _, r := range e.Routes() {
		if r.Method == http.MethodGet && r.Path == "/healthz" {
			continue
		}
		assert.NotContains(t, r.Path, "/v1/bookings")
	}
}
