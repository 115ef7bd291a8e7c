package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole aborts with 403 unless the role claim stored by JWTAuth is
// one of roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allowed[Role(c)] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "code": "FORBIDDEN"})
			}
			return next(c)
		}
	}
}

// HasRole reports whether the authenticated user holds one of roles.
func HasRole(c echo.Context, roles ...string) bool {
	r := Role(c)
	for _, want := range roles {
		if r == want {
			return true
		}
	}
	return false
}
