package model

import "time"

// BookingStatus is the lifecycle state of a booking.  Only the
// reservation lifecycle writes it.
type BookingStatus string

const (
	StatusSoftHold  BookingStatus = "soft_hold"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCheckedIn BookingStatus = "checked_in"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
)

// Active reports whether the status blocks the booked interval.
func (s BookingStatus) Active() bool {
	return s == StatusSoftHold || s == StatusConfirmed || s == StatusCheckedIn
}

// Valid reports whether s is one of the known statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusSoftHold, StatusConfirmed, StatusCheckedIn, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Booking is a reservation of a trainer's time.  A booking is owned by
// the studio (tenant) that created it.
//
// Fields:
//  ID              – opaque identifier (UUID).
//  StudioID        – tenant scope.
//  TrainerID       – trainer whose calendar is reserved.
//  ClientID        – client the booking is for; nil until claimed.
//  ServiceID       – session type; nil for ad-hoc bookings.
//  ScheduledAt     – start instant (UTC).
//  DurationMinutes – positive length of the session.
//  Status          – lifecycle state.
//  HoldExpiry      – set only while Status is soft_hold.
//  SessionID       – training session created on completion.
//  Notes           – free text.
type Booking struct {
	ID              string        `json:"id"`
	StudioID        string        `json:"studio_id"`
	TrainerID       string        `json:"trainer_id"`
	ClientID        *string       `json:"client_id"`
	ServiceID       *string       `json:"service_id"`
	ScheduledAt     time.Time     `json:"scheduled_at"`
	DurationMinutes int           `json:"duration_minutes"`
	Status          BookingStatus `json:"status"`
	HoldExpiry      *time.Time    `json:"hold_expiry,omitempty"`
	SessionID       *string       `json:"session_id"`
	Notes           string        `json:"notes"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// EndsAt returns the exclusive end of the booked interval.
func (b Booking) EndsAt() time.Time {
	return b.ScheduledAt.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// HoldExpired reports whether b is a soft hold whose expiry is at or
// before now.
func (b Booking) HoldExpired(now time.Time) bool {
	return b.Status == StatusSoftHold && b.HoldExpiry != nil && !b.HoldExpiry.After(now)
}

// TrainingSession is the record created when a booking completes.
type TrainingSession struct {
	ID          string    // training_sessions.id
	BookingID   string    // training_sessions.booking_id (unique)
	TrainerID   string    // training_sessions.trainer_id
	ClientID    *string   // training_sessions.client_id (nullable)
	CompletedAt time.Time // training_sessions.completed_at
}
