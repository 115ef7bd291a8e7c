package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/trainer-booking/internal/booking"
	"github.com/iliyamo/trainer-booking/internal/model"
	"github.com/iliyamo/trainer-booking/internal/repository"
)

// MaxAvailabilityRange bounds one availability query.
const MaxAvailabilityRange = 62 * 24 * time.Hour

// Availability answers free-window queries for a trainer.
type Availability struct {
	studios  StudioStore
	bookings BookingStore
	now      func() time.Time
}

// NewAvailability returns an Availability over the given stores.
func NewAvailability(studios StudioStore, bookings BookingStore, now func() time.Time) *Availability {
	if now == nil {
		now = time.Now
	}
	return &Availability{studios: studios, bookings: bookings, now: now}
}

// Windows lists the trainer's free windows in [from, to): availability
// rules minus blocked windows minus live bookings.  An empty studioID
// looks the trainer up by id alone.
func (a *Availability) Windows(ctx context.Context, studioID, trainerID string, from, to time.Time) ([]model.Window, error) {
	if !from.Before(to) {
		return nil, booking.Validation("from must be before to")
	}
	if to.Sub(from) > MaxAvailabilityRange {
		return nil, booking.Validation("range must not exceed %d days", int(MaxAvailabilityRange.Hours()/24))
	}
	t, err := a.studios.Trainer(ctx, studioID, trainerID)
	if err != nil {
		return nil, notFound(err, "trainer %s not found", trainerID)
	}
	settings, err := a.studios.Settings(ctx, t.StudioID)
	if errors.Is(err, repository.ErrNotFound) {
		settings = model.DefaultStudioSettings(t.StudioID)
	} else if err != nil {
		return nil, err
	}
	rules, err := a.studios.AvailabilityRules(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	blocks, err := a.studios.BlockedWindows(ctx, t.ID, from, to)
	if err != nil {
		return nil, err
	}
	scanFrom, _ := booking.ScanWindow(booking.Interval{Start: from, End: to})
	existing, err := a.bookings.ActiveBetween(ctx, t.ID, scanFrom, to)
	if err != nil {
		return nil, err
	}
	now := a.now()
	busy := make([]booking.Interval, 0, len(existing))
	for _, b := range existing {
		if b.HoldExpired(now) {
			continue
		}
		busy = append(busy, booking.NewInterval(b.ScheduledAt, b.DurationMinutes))
	}
	return booking.AvailableWindows(rules, blocks, busy, from, to, settings.Location()), nil
}
