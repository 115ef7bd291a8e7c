package middleware

// identity.go holds the context keys JWTAuth fills and the accessors
// handlers and other middleware read them through.

import (
	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	ctxUserID    = "user_id"
	ctxRole      = "role"
	ctxStudioID  = "studio_id"
	ctxTrainerID = "trainer_id"
)

func ctxString(c echo.Context, key string) string {
	if s, ok := c.Get(key).(string); ok {
		return s
	}
	return ""
}

// UserID returns the authenticated staff user id, or "" for anonymous
// requests.
func UserID(c echo.Context) string { return ctxString(c, ctxUserID) }

// Role returns the role claim of the authenticated user.
func Role(c echo.Context) string { return ctxString(c, ctxRole) }

// StudioID returns the studio the authenticated user belongs to.  Every
// staff query is scoped to it.
func StudioID(c echo.Context) string { return ctxString(c, ctxStudioID) }

// TrainerID returns the trainer profile linked to the user, if any.
func TrainerID(c echo.Context) string { return ctxString(c, ctxTrainerID) }

// requesterKey identifies the caller for rate limiting: the staff user
// when signed in, "anon" otherwise.
func requesterKey(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}
