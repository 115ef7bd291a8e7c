// Package payment translates payment gateway webhooks into the payment
// events the booking core consumes.
package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/iliyamo/trainer-booking/internal/queue"
)

// MetadataBookingID is the metadata key carrying the booking id on
// checkout sessions, payment intents and charges.
const MetadataBookingID = "booking_id"

var (
	// ErrUnknownPaymentEvent is returned for event types the booking core
	// does not act on.  Callers acknowledge such events.
	ErrUnknownPaymentEvent = errors.New("payment event type not handled")
	// ErrInvalidSignature is returned when the webhook signature does not
	// verify against the configured secret.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMissingBooking is returned when a handled event carries no
	// booking id in its metadata.
	ErrMissingBooking = errors.New("payment event without booking_id metadata")
)

// StripeWebhook verifies and decodes Stripe webhook deliveries.
type StripeWebhook struct {
	secret string
}

// NewStripeWebhook returns a decoder for endpoints signed with secret.
func NewStripeWebhook(secret string) *StripeWebhook {
	return &StripeWebhook{secret: secret}
}

// Parse verifies the Stripe-Signature header and maps the event to a
// queue.PaymentEvent.
func (w *StripeWebhook) Parse(payload []byte, signature string) (queue.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, w.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return queue.PaymentEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return Translate(event)
}

// Translate maps a verified Stripe event to a payment event.
func Translate(event stripe.Event) (queue.PaymentEvent, error) {
	ev := queue.PaymentEvent{ID: event.ID, At: time.Unix(event.Created, 0).UTC()}
	if event.Data == nil {
		return ev, fmt.Errorf("stripe event %s has no data", event.ID)
	}

	var metadata map[string]string
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return ev, fmt.Errorf("decode checkout session: %w", err)
		}
		ev.Kind = queue.PaymentCheckoutCompleted
		ev.Amount, ev.Currency, metadata = s.AmountTotal, string(s.Currency), s.Metadata
	case stripe.EventTypePaymentIntentPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return ev, fmt.Errorf("decode payment intent: %w", err)
		}
		ev.Kind = queue.PaymentFailed
		ev.Amount, ev.Currency, metadata = pi.Amount, string(pi.Currency), pi.Metadata
	case stripe.EventTypeChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return ev, fmt.Errorf("decode charge: %w", err)
		}
		ev.Kind = queue.PaymentChargeRefunded
		ev.Amount, ev.Currency, metadata = ch.AmountRefunded, string(ch.Currency), ch.Metadata
	default:
		return ev, fmt.Errorf("%w: %s", ErrUnknownPaymentEvent, event.Type)
	}

	ev.BookingID = metadata[MetadataBookingID]
	if ev.BookingID == "" {
		return ev, ErrMissingBooking
	}
	return ev, nil
}
