package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/trainer-booking/internal/booking"
)

// statusOf maps a domain error code to an HTTP status.
func statusOf(code string) int {
	switch code {
	case booking.CodeValidation:
		return http.StatusBadRequest
	case booking.CodeNotFound:
		return http.StatusNotFound
	case booking.CodeForbidden:
		return http.StatusForbidden
	case booking.CodeConflict, booking.CodeInvalidState,
		booking.CodeInsufficientCredits, booking.CodeNoActivePackage:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes err as {"error","code"}.  Errors that are not domain
// errors are logged and reported without their message.
func fail(c echo.Context, log *zap.Logger, err error) error {
	var de *booking.Error
	if errors.As(err, &de) {
		status := statusOf(de.Code)
		if status >= http.StatusInternalServerError {
			log.Error("request failed", zap.String("route", c.Path()), zap.String("code", de.Code), zap.Error(err))
		}
		return c.JSON(status, echo.Map{"error": de.Message, "code": de.Code})
	}
	log.Error("request failed", zap.String("route", c.Path()), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "code": "INTERNAL"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": booking.CodeValidation})
}

// parseTimeParam reads an optional RFC 3339 query parameter.
func parseTimeParam(c echo.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, booking.Validation("%s must be an RFC 3339 timestamp", name)
	}
	t = t.UTC()
	return &t, nil
}

func parseBoolParam(c echo.Context, name string) bool {
	b, _ := strconv.ParseBool(c.QueryParam(name))
	return b
}
