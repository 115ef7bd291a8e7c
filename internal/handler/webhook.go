package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/trainer-booking/internal/booking"
	"github.com/iliyamo/trainer-booking/internal/payment"
	"github.com/iliyamo/trainer-booking/internal/queue"
)

// maxWebhookBody caps the webhook payload read into memory.
const maxWebhookBody = 64 << 10

// WebhookHandler receives Stripe webhooks and hands the translated
// events to Payments, either in-process or through the payment exchange.
type WebhookHandler struct {
	Stripe   *payment.StripeWebhook
	Payments queue.PaymentProcessor
	Log      *zap.Logger
}

func NewWebhookHandler(s *payment.StripeWebhook, p queue.PaymentProcessor, log *zap.Logger) *WebhookHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebhookHandler{Stripe: s, Payments: p, Log: log}
}

// StripeEvent: POST /v1/webhooks/stripe
func (h *WebhookHandler) StripeEvent(c echo.Context) error {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{
				"error": fmt.Sprintf("payload exceeds %d bytes", tooLarge.Limit),
				"code":  booking.CodeValidation,
			})
		}
		return badRequest(c, "read body failed")
	}
	ev, err := h.Stripe.Parse(payload, c.Request().Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, payment.ErrInvalidSignature):
		return badRequest(c, "invalid signature")
	case errors.Is(err, payment.ErrUnknownPaymentEvent), errors.Is(err, payment.ErrMissingBooking):
		// Acknowledge so Stripe stops retrying events we never act on.
		h.Log.Debug("webhook ignored", zap.Error(err))
		return c.JSON(http.StatusOK, echo.Map{"received": true, "ignored": true})
	case err != nil:
		return badRequest(c, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Payments.HandlePayment(ctx, ev); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
