package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/trainer-booking/internal/booking"
	mw "github.com/iliyamo/trainer-booking/internal/middleware"
	"github.com/iliyamo/trainer-booking/internal/model"
	"github.com/iliyamo/trainer-booking/internal/repository"
	"github.com/iliyamo/trainer-booking/internal/service"
)

// BookingHandler serves the staff booking endpoints.  Every call is
// scoped to the studio carried by the caller's access token.
type BookingHandler struct {
	Reservations *service.Reservations
	Availability *service.Availability
	Log          *zap.Logger
}

func NewBookingHandler(r *service.Reservations, a *service.Availability, log *zap.Logger) *BookingHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingHandler{Reservations: r, Availability: a, Log: log}
}

type createBookingReq struct {
	TrainerID       string    `json:"trainer_id"`
	ClientID        *string   `json:"client_id"`
	ServiceID       *string   `json:"service_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	Notes           string    `json:"notes"`
}

type updateBookingReq struct {
	ScheduledAt     *time.Time `json:"scheduled_at"`
	DurationMinutes *int       `json:"duration_minutes"`
	ServiceID       *string    `json:"service_id"`
	ClientID        *string    `json:"client_id"`
	Notes           *string    `json:"notes"`
	Status          *string    `json:"status"`
	Reason          string     `json:"reason"`
}

type cancelReq struct {
	Reason string `json:"reason"`
}

type completeResp struct {
	Booking        *model.Booking        `json:"booking"`
	Deduction      *service.DeductResult `json:"deduction,omitempty"`
	DeductionError *booking.Error        `json:"deduction_error,omitempty"`
}

func parseStatus(raw string) (model.BookingStatus, error) {
	st := model.BookingStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !st.Valid() {
		return "", booking.Validation("unknown status %q", raw)
	}
	return st, nil
}

// List: GET /v1/bookings?trainerId&clientId&status&startDate&endDate&limit
func (h *BookingHandler) List(c echo.Context) error {
	f := repository.BookingFilter{
		StudioID:  mw.StudioID(c),
		TrainerID: strings.TrimSpace(c.QueryParam("trainerId")),
		ClientID:  strings.TrimSpace(c.QueryParam("clientId")),
	}
	if raw := c.QueryParam("status"); raw != "" {
		st, err := parseStatus(raw)
		if err != nil {
			return fail(c, h.Log, err)
		}
		f.Status = st
	}
	var err error
	if f.From, err = parseTimeParam(c, "startDate"); err != nil {
		return fail(c, h.Log, err)
	}
	if f.To, err = parseTimeParam(c, "endDate"); err != nil {
		return fail(c, h.Log, err)
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return badRequest(c, "limit must be a positive integer")
		}
		f.Limit = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Reservations.List(ctx, f)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if items == nil {
		items = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Create: POST /v1/bookings
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	in := service.CreateInput{
		StudioID:        mw.StudioID(c),
		TrainerID:       strings.TrimSpace(req.TrainerID),
		ClientID:        req.ClientID,
		ServiceID:       req.ServiceID,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
	}
	if req.Status != "" {
		st, err := parseStatus(req.Status)
		if err != nil {
			return fail(c, h.Log, err)
		}
		in.Status = st
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Reservations.Create(ctx, in)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Get: GET /v1/bookings/:id
func (h *BookingHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Reservations.Get(ctx, mw.StudioID(c), c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Update: PUT /v1/bookings/:id
func (h *BookingHandler) Update(c echo.Context) error {
	var req updateBookingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	in := service.UpdateInput{
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		ServiceID:       req.ServiceID,
		ClientID:        req.ClientID,
		Notes:           req.Notes,
		Reason:          req.Reason,
	}
	if req.Status != nil {
		st, err := parseStatus(*req.Status)
		if err != nil {
			return fail(c, h.Log, err)
		}
		in.Status = &st
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Reservations.Update(ctx, mw.StudioID(c), c.Param("id"), in)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Delete: DELETE /v1/bookings/:id cancels; ?hardDelete=true removes the
// row and is reserved to admins.
func (h *BookingHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	studioID, id := mw.StudioID(c), c.Param("id")
	if parseBoolParam(c, "hardDelete") {
		if !mw.HasRole(c, model.RoleAdmin) {
			return fail(c, h.Log, booking.Forbidden("hard delete requires an admin"))
		}
		if err := h.Reservations.HardDelete(ctx, studioID, id); err != nil {
			return fail(c, h.Log, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
	b, err := h.Reservations.Cancel(ctx, studioID, id, strings.TrimSpace(c.QueryParam("reason")))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Confirm: POST /v1/bookings/:id/confirm
func (h *BookingHandler) Confirm(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Reservations.Confirm(ctx, mw.StudioID(c), c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// CheckIn: POST /v1/bookings/:id/check-in
func (h *BookingHandler) CheckIn(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Reservations.CheckIn(ctx, mw.StudioID(c), c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Complete: POST /v1/bookings/:id/complete.  A billing shortfall does
// not fail the request; it is reported in deduction_error.
func (h *BookingHandler) Complete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Reservations.Complete(ctx, mw.StudioID(c), c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	resp := completeResp{Booking: res.Booking, Deduction: res.Deduction}
	if res.DeductionErr != nil {
		if de, ok := res.DeductionErr.(*booking.Error); ok {
			resp.DeductionError = de
		} else {
			resp.DeductionError = &booking.Error{Code: booking.CodeLedgerInconsistent, Message: res.DeductionErr.Error()}
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Cancel: POST /v1/bookings/:id/cancel
func (h *BookingHandler) Cancel(c echo.Context) error {
	var req cancelReq
	_ = c.Bind(&req)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Reservations.Cancel(ctx, mw.StudioID(c), c.Param("id"), strings.TrimSpace(req.Reason))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// TrainerAvailability: GET /v1/trainers/:id/availability?from&to
func (h *BookingHandler) TrainerAvailability(c echo.Context) error {
	return availability(c, h.Availability, h.Log, mw.StudioID(c), c.Param("id"))
}

// availability parses the from/to window and returns the trainer's free
// windows.  Both bounds are required.
func availability(c echo.Context, a *service.Availability, log *zap.Logger, studioID, trainerID string) error {
	from, err := parseTimeParam(c, "from")
	if err != nil {
		return fail(c, log, err)
	}
	to, err := parseTimeParam(c, "to")
	if err != nil {
		return fail(c, log, err)
	}
	if from == nil || to == nil {
		return badRequest(c, "from and to are required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	windows, err := a.Windows(ctx, studioID, trainerID, *from, *to)
	if err != nil {
		return fail(c, log, err)
	}
	if windows == nil {
		windows = []model.Window{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"trainer_id": trainerID,
		"from":       from,
		"to":         to,
		"windows":    windows,
	})
}
