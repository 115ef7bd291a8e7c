package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/trainer-booking/internal/booking"
	"github.com/iliyamo/trainer-booking/internal/model"
	"github.com/iliyamo/trainer-booking/internal/queue"
)

// Payments applies payment gateway events to bookings.  Each event id is
// applied at most once; events that cannot apply to the booking's
// current state are acknowledged and logged.
type Payments struct {
	events       PaymentEventStore
	reservations *Reservations
	log          *zap.Logger
}

// NewPayments returns a payment event dispatcher.
func NewPayments(events PaymentEventStore, reservations *Reservations, log *zap.Logger) *Payments {
	if log == nil {
		log = zap.NewNop()
	}
	return &Payments{events: events, reservations: reservations, log: log}
}

// HandlePayment implements queue.PaymentProcessor.  A returned error
// means the event should be delivered again.
func (p *Payments) HandlePayment(ctx context.Context, ev queue.PaymentEvent) error {
	log := p.log.With(zap.String("event_id", ev.ID), zap.String("kind", ev.Kind), zap.String("booking_id", ev.BookingID))
	fresh, err := p.events.Begin(ctx, ev.ID, ev.Kind, ev.BookingID)
	if err != nil {
		return err
	}
	if !fresh {
		log.Debug("payment event already processed")
		return nil
	}

	err = p.apply(ctx, ev)
	switch {
	case err == nil:
		log.Info("payment event applied")
	case booking.CodeOf(err) != "":
		// the booking cannot take this event; retrying will not help
		log.Warn("payment event ignored", zap.Error(err))
	default:
		return err
	}
	return p.events.MarkProcessed(ctx, ev.ID)
}

func (p *Payments) apply(ctx context.Context, ev queue.PaymentEvent) error {
	switch ev.Kind {
	case queue.PaymentCheckoutCompleted:
		_, err := p.reservations.Confirm(ctx, "", ev.BookingID)
		return err
	case queue.PaymentFailed:
		b, err := p.reservations.Get(ctx, "", ev.BookingID)
		if err != nil {
			return err
		}
		if b.Status != model.StatusSoftHold && b.Status != model.StatusConfirmed {
			return booking.InvalidState("payment failure for booking in status %s", b.Status)
		}
		_, err = p.reservations.Cancel(ctx, "", ev.BookingID, "payment failed")
		return err
	case queue.PaymentChargeRefunded:
		_, err := p.reservations.Cancel(ctx, "", ev.BookingID, "charge refunded")
		return err
	}
	return booking.Validation("unknown payment event kind %q", ev.Kind)
}
