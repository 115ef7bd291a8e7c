package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/trainer-booking/internal/model"
	"github.com/iliyamo/trainer-booking/internal/service"
)

// PublicHandler serves the unauthenticated booking page.
type PublicHandler struct {
	Reservations *service.Reservations
	Identity     *service.IdentityResolver
	Availability *service.Availability
	Log          *zap.Logger
}

func NewPublicHandler(r *service.Reservations, ids *service.IdentityResolver, a *service.Availability, log *zap.Logger) *PublicHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PublicHandler{Reservations: r, Identity: ids, Availability: a, Log: log}
}

type publicBookingReq struct {
	TrainerID       string    `json:"trainer_id"`
	ServiceID       *string   `json:"service_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Email           string    `json:"email"`
	FullName        string    `json:"full_name"`
	Notes           string    `json:"notes"`
}

type publicBookingResp struct {
	Booking *model.Booking `json:"booking"`
	Client  *model.Client  `json:"client"`
}

// CreateBooking: POST /v1/public/studios/:studioId/bookings.  The
// requester is identified by email; the booking starts as a soft hold.
func (h *PublicHandler) CreateBooking(c echo.Context) error {
	var req publicBookingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, cl, err := h.Reservations.CreatePublic(ctx, h.Identity, service.PublicInput{
		StudioID:        c.Param("studioId"),
		TrainerID:       strings.TrimSpace(req.TrainerID),
		ServiceID:       req.ServiceID,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Email:           req.Email,
		FullName:        req.FullName,
		Notes:           req.Notes,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, publicBookingResp{Booking: b, Client: cl})
}

// TrainerAvailability: GET /v1/public/trainers/:id/availability?from&to
func (h *PublicHandler) TrainerAvailability(c echo.Context) error {
	return availability(c, h.Availability, h.Log, "", c.Param("id"))
}
