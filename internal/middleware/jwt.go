package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trainer-booking/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the staff user's id, role, studio and trainer claims into the
// request context.  The provided secret must match the one used when
// issuing tokens.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token", "code": "UNAUTHENTICATED"})
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "code": "UNAUTHENTICATED"})
			}
			c.Set(ctxUserID, claims.Subject)
			c.Set(ctxRole, claims.Role)
			c.Set(ctxStudioID, claims.StudioID)
			c.Set(ctxTrainerID, claims.TrainerID)
			return next(c)
		}
	}
}
