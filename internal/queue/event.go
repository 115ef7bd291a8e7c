// Package queue defines message payloads exchanged over the message broker
// together with the RabbitMQ publisher and consumers that carry them.
package queue

import "time"

// Routing keys of outbound notification events.
const (
	KeyBookingConfirmed = "booking.confirmed"
	KeyBookingCancelled = "booking.cancelled"
	KeyReminderDue      = "booking.reminder"
	KeyLowCredits       = "credits.low"
)

// Event is a typed notification produced by the booking core.
type Event interface {
	RoutingKey() string
}

// BookingConfirmed is published when a reservation reaches confirmed.
// It contains enough information for downstream consumers to notify the
// client without querying the primary database.
type BookingConfirmed struct {
	BookingID       string    `json:"booking_id"`
	StudioID        string    `json:"studio_id"`
	ClientEmail     string    `json:"client_email,omitempty"`
	TrainerName     string    `json:"trainer_name"`
	ServiceName     string    `json:"service_name,omitempty"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

func (BookingConfirmed) RoutingKey() string { return KeyBookingConfirmed }

// BookingCancelled is published after a cancellation commits.
type BookingCancelled struct {
	BookingID   string    `json:"booking_id"`
	StudioID    string    `json:"studio_id"`
	ClientEmail string    `json:"client_email,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Reason      string    `json:"reason"`
	Refunded    bool      `json:"refunded"`
}

func (BookingCancelled) RoutingKey() string { return KeyBookingCancelled }

// ReminderDue is published hoursBefore the session starts.
type ReminderDue struct {
	BookingConfirmed
	HoursBefore int `json:"hours_before"`
}

func (ReminderDue) RoutingKey() string { return KeyReminderDue }

// LowCredits is published after a deduction leaves the client at or
// below the studio's threshold.
type LowCredits struct {
	ClientID  string `json:"client_id"`
	StudioID  string `json:"studio_id"`
	Remaining int    `json:"remaining"`
}

func (LowCredits) RoutingKey() string { return KeyLowCredits }

// Inbound payment event kinds.
const (
	PaymentCheckoutCompleted = "checkout.completed"
	PaymentFailed            = "payment.failed"
	PaymentChargeRefunded    = "charge.refunded"
)

// PaymentEvent is an inbound message from the payment gateway.  The
// routing key on the payment exchange equals Kind.
type PaymentEvent struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	BookingID string    `json:"booking_id"`
	Amount    int64     `json:"amount,omitempty"`
	Currency  string    `json:"currency,omitempty"`
	At        time.Time `json:"at"`
}
