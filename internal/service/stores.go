// Package service implements the booking core on top of the repository
// layer: the reservation lifecycle, the credit ledger, the public
// identity resolver, availability queries and inbound payment events.
// Dependencies are declared here as small interfaces so the services can
// run against MySQL repositories in production and an in-memory store in
// tests.
package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/trainer-booking/internal/booking"
	"github.com/iliyamo/trainer-booking/internal/model"
	"github.com/iliyamo/trainer-booking/internal/queue"
	"github.com/iliyamo/trainer-booking/internal/repository"
)

// TxRunner runs fn inside one transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// BookingStore is the persistence the reservation lifecycle needs.
type BookingStore interface {
	LockTrainerTx(ctx context.Context, tx *sql.Tx, studioID, trainerID string) error
	ExpireHoldsTx(ctx context.Context, tx *sql.Tx, trainerID string, now time.Time) (int64, error)
	ActiveInWindowTx(ctx context.Context, tx *sql.Tx, trainerID string, from, to time.Time) ([]model.Booking, error)
	CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error
	SaveTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error
	GetForUpdateTx(ctx context.Context, tx *sql.Tx, studioID, id string) (*model.Booking, error)
	DeleteTx(ctx context.Context, tx *sql.Tx, id string) error
	CreateSessionTx(ctx context.Context, tx *sql.Tx, s *model.TrainingSession) error

	Get(ctx context.Context, studioID, id string) (*model.Booking, error)
	List(ctx context.Context, f repository.BookingFilter) ([]model.Booking, error)
	ActiveBetween(ctx context.Context, trainerID string, from, to time.Time) ([]model.Booking, error)
	SweepExpiredHolds(ctx context.Context, studioID string, now time.Time) (int64, error)
}

// CreditStore is the persistence the credit ledger needs.
type CreditStore interface {
	UsageByBookingTx(ctx context.Context, tx *sql.Tx, bookingID string) (*model.CreditUsage, error)
	ActivePackagesForUpdateTx(ctx context.Context, tx *sql.Tx, clientID string) ([]model.ClientPackage, error)
	MarkExpiredTx(ctx context.Context, tx *sql.Tx, packageID string) error
	ConsumeTx(ctx context.Context, tx *sql.Tx, packageID string, credits int) error
	RestoreTx(ctx context.Context, tx *sql.Tx, packageID string, credits int) error
	CreateUsageTx(ctx context.Context, tx *sql.Tx, u *model.CreditUsage) error
	DeleteUsageTx(ctx context.Context, tx *sql.Tx, id string) error

	CreatePackage(ctx context.Context, p *model.ClientPackage) error
	ListPackages(ctx context.Context, clientID string) ([]model.ClientPackage, error)
	ExpirePackages(ctx context.Context, now time.Time) (int64, error)
}

// StudioStore reads studio policy and catalogue rows.
type StudioStore interface {
	Settings(ctx context.Context, studioID string) (model.StudioSettings, error)
	Trainer(ctx context.Context, studioID, trainerID string) (*model.Trainer, error)
	Service(ctx context.Context, studioID, serviceID string) (*model.Service, error)
	AvailabilityRules(ctx context.Context, trainerID string) ([]model.AvailabilityRule, error)
	BlockedWindows(ctx context.Context, trainerID string, from, to time.Time) ([]model.BlockedWindow, error)
}

// ClientStore reads and creates studio-scoped clients.
type ClientStore interface {
	Get(ctx context.Context, studioID, id string) (*model.Client, error)
	ByStudioEmail(ctx context.Context, studioID, email string) (*model.Client, error)
	AccountByEmail(ctx context.Context, email string) (*model.Client, error)
	Create(ctx context.Context, c *model.Client) error
}

// PaymentEventStore deduplicates inbound payment events.
type PaymentEventStore interface {
	Begin(ctx context.Context, eventID, kind, bookingID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

// Emitter is the notification sink.  Implementations publish to the
// message broker; callers never let a failure affect the booking.
type Emitter interface {
	Emit(ctx context.Context, ev queue.Event) error
}

// ReminderScheduler queues ReminderDue notifications for a confirmed
// booking.
type ReminderScheduler interface {
	ScheduleReminders(ctx context.Context, b model.Booking) error
}

// notFound translates repository.ErrNotFound into a domain error naming
// what was missing.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return booking.NotFound(format, args...)
	}
	return err
}

// ClientNotFound maps a client lookup error for callers outside the
// package.
func ClientNotFound(err error, clientID string) error {
	return notFound(err, "client %s not found", clientID)
}
