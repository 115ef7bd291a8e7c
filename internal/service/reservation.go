package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/trainer-booking/internal/booking"
	"github.com/iliyamo/trainer-booking/internal/model"
	"github.com/iliyamo/trainer-booking/internal/queue"
	"github.com/iliyamo/trainer-booking/internal/repository"
)

// Deps groups the collaborators of Reservations.  Emitter and Reminders
// may be nil.
type Deps struct {
	Tx        TxRunner
	Bookings  BookingStore
	Studios   StudioStore
	Clients   ClientStore
	Ledger    *Ledger
	Emitter   Emitter
	Reminders ReminderScheduler
	Log       *zap.Logger
	Now       func() time.Time
}

// Reservations is the booking state machine.  It is the only writer of
// bookings.status.
type Reservations struct {
	tx        TxRunner
	bookings  BookingStore
	studios   StudioStore
	clients   ClientStore
	ledger    *Ledger
	emitter   Emitter
	reminders ReminderScheduler
	log       *zap.Logger
	now       func() time.Time
}

// NewReservations wires the lifecycle service.
func NewReservations(d Deps) *Reservations {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Reservations{
		tx:        d.Tx,
		bookings:  d.Bookings,
		studios:   d.Studios,
		clients:   d.Clients,
		ledger:    d.Ledger,
		emitter:   d.Emitter,
		reminders: d.Reminders,
		log:       d.Log,
		now:       d.Now,
	}
}

// CreateInput describes a reservation request.  Public marks requests
// from the unauthenticated booking page.
type CreateInput struct {
	StudioID        string
	TrainerID       string
	ClientID        *string
	ServiceID       *string
	ScheduledAt     time.Time
	DurationMinutes int
	Status          model.BookingStatus
	Notes           string
	Public          bool
}

// Create validates, gates and persists a new booking.  The conflict
// check and the insert run in one transaction holding the trainer lock.
func (r *Reservations) Create(ctx context.Context, in CreateInput) (*model.Booking, error) {
	svc, settings, candidate, err := r.prepare(ctx, &in)
	if err != nil {
		return nil, err
	}
	if in.ClientID != nil && *in.ClientID != "" {
		if _, err := r.clients.Get(ctx, in.StudioID, *in.ClientID); err != nil {
			return nil, notFound(err, "client %s not found", *in.ClientID)
		}
	} else {
		in.ClientID = nil
	}
	status, err := booking.InitialStatus(in.Status, in.Public, settings.SoftHoldsEnabled)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	b := &model.Booking{
		ID:              uuid.NewString(),
		StudioID:        in.StudioID,
		TrainerID:       in.TrainerID,
		ClientID:        in.ClientID,
		ServiceID:       in.ServiceID,
		ScheduledAt:     candidate.Start,
		DurationMinutes: in.DurationMinutes,
		Status:          status,
		Notes:           strings.TrimSpace(in.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if status == model.StatusSoftHold {
		exp := now.Add(time.Duration(booking.HoldMinutes(settings, in.Public)) * time.Minute)
		b.HoldExpiry = &exp
	}

	err = r.tx.WithTx(ctx, func(tx *sql.Tx) error {
		if err := r.lockCalendar(ctx, tx, b.StudioID, b.TrainerID, now); err != nil {
			return err
		}
		if err := r.checkConflict(ctx, tx, b.TrainerID, candidate, "", now); err != nil {
			return err
		}
		if err := r.bookings.CreateTx(ctx, tx, b); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return booking.Conflict("trainer already has a booking starting at %s", candidate.Start.Format(time.RFC3339))
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("trainer_id", b.TrainerID),
		zap.String("status", string(b.Status)),
		zap.Bool("public", in.Public))
	if b.Status == model.StatusConfirmed {
		r.afterConfirm(ctx, b, svc)
	}
	return b, nil
}

// PublicInput is a reservation request from the public booking page.
type PublicInput struct {
	StudioID        string
	TrainerID       string
	ServiceID       *string
	ScheduledAt     time.Time
	DurationMinutes int
	Email           string
	FullName        string
	Notes           string
}

// CreatePublic resolves the requester's email to a studio client and
// creates a soft hold for them.  The request is gated and checked
// against the calendar before the email is resolved, so a rejected
// request leaves no guest client behind.
func (r *Reservations) CreatePublic(ctx context.Context, ids *IdentityResolver, in PublicInput) (*model.Booking, *model.Client, error) {
	ci := CreateInput{
		StudioID:        in.StudioID,
		TrainerID:       in.TrainerID,
		ServiceID:       in.ServiceID,
		ScheduledAt:     in.ScheduledAt,
		DurationMinutes: in.DurationMinutes,
		Notes:           in.Notes,
		Public:          true,
	}
	_, _, candidate, err := r.prepare(ctx, &ci)
	if err != nil {
		return nil, nil, err
	}
	if _, err := r.studios.Trainer(ctx, in.StudioID, in.TrainerID); err != nil {
		return nil, nil, notFound(err, "trainer %s not found", in.TrainerID)
	}
	from, to := booking.ScanWindow(candidate)
	existing, err := r.bookings.ActiveBetween(ctx, in.TrainerID, from, to)
	if err != nil {
		return nil, nil, err
	}
	if c := booking.FindConflict(candidate, existing, "", r.now().UTC()); c != nil {
		return nil, nil, conflictWith(c)
	}

	client, err := ids.Resolve(ctx, in.StudioID, in.Email, in.FullName)
	if err != nil {
		return nil, nil, err
	}
	ci.ClientID = &client.ID
	b, err := r.Create(ctx, ci)
	if err != nil {
		return nil, nil, err
	}
	return b, client, nil
}

// prepare validates in, fills the duration from its service and runs
// the booking-model and opening-hours gates.
func (r *Reservations) prepare(ctx context.Context, in *CreateInput) (*model.Service, model.StudioSettings, booking.Interval, error) {
	if in.StudioID == "" || in.TrainerID == "" {
		return nil, model.StudioSettings{}, booking.Interval{}, booking.Validation("studio_id and trainer_id are required")
	}
	if in.ScheduledAt.IsZero() {
		return nil, model.StudioSettings{}, booking.Interval{}, booking.Validation("scheduled_at is required")
	}

	var svc *model.Service
	if in.ServiceID != nil && *in.ServiceID != "" {
		s, err := r.studios.Service(ctx, in.StudioID, *in.ServiceID)
		if err != nil {
			return nil, model.StudioSettings{}, booking.Interval{}, notFound(err, "service %s not found", *in.ServiceID)
		}
		svc = s
		if in.DurationMinutes == 0 {
			in.DurationMinutes = s.DurationMinutes
		}
	} else {
		in.ServiceID = nil
	}
	if err := validDuration(in.DurationMinutes); err != nil {
		return nil, model.StudioSettings{}, booking.Interval{}, err
	}

	settings, err := r.settings(ctx, in.StudioID)
	if err != nil {
		return nil, model.StudioSettings{}, booking.Interval{}, err
	}
	if err := booking.CheckBookingModel(settings, in.Public); err != nil {
		return nil, model.StudioSettings{}, booking.Interval{}, err
	}
	candidate := booking.NewInterval(in.ScheduledAt.UTC(), in.DurationMinutes)
	if err := booking.CheckOpeningHours(settings, candidate); err != nil {
		return nil, model.StudioSettings{}, booking.Interval{}, err
	}
	return svc, settings, candidate, nil
}

func validDuration(minutes int) error {
	if minutes <= 0 {
		return booking.Validation("duration_minutes must be positive")
	}
	if minutes > booking.MaxDurationMinutes {
		return booking.Validation("duration_minutes must not exceed %d", booking.MaxDurationMinutes)
	}
	return nil
}

func (r *Reservations) settings(ctx context.Context, studioID string) (model.StudioSettings, error) {
	s, err := r.studios.Settings(ctx, studioID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.StudioSettings{}, booking.NotFound("studio %s not found", studioID)
	}
	return s, err
}

// lockCalendar serialises writers of one trainer calendar and clears
// expired holds so they cannot block the caller.
func (r *Reservations) lockCalendar(ctx context.Context, tx *sql.Tx, studioID, trainerID string, now time.Time) error {
	if err := r.bookings.LockTrainerTx(ctx, tx, studioID, trainerID); err != nil {
		return notFound(err, "trainer %s not found", trainerID)
	}
	n, err := r.bookings.ExpireHoldsTx(ctx, tx, trainerID, now)
	if err != nil {
		return err
	}
	if n > 0 {
		r.log.Debug("expired holds swept", zap.String("trainer_id", trainerID), zap.Int64("count", n))
	}
	return nil
}

func (r *Reservations) checkConflict(ctx context.Context, tx *sql.Tx, trainerID string, candidate booking.Interval, excludeID string, now time.Time) error {
	from, to := booking.ScanWindow(candidate)
	existing, err := r.bookings.ActiveInWindowTx(ctx, tx, trainerID, from, to)
	if err != nil {
		return err
	}
	if c := booking.FindConflict(candidate, existing, excludeID, now); c != nil {
		return conflictWith(c)
	}
	return nil
}

func conflictWith(c *model.Booking) error {
	return booking.Conflict("trainer is already booked from %s to %s",
		c.ScheduledAt.UTC().Format(time.RFC3339), c.EndsAt().UTC().Format(time.RFC3339))
}

// Get returns one booking after sweeping expired holds, so a stale hold
// is reported as cancelled.
func (r *Reservations) Get(ctx context.Context, studioID, id string) (*model.Booking, error) {
	if _, err := r.bookings.SweepExpiredHolds(ctx, studioID, r.now()); err != nil {
		return nil, err
	}
	b, err := r.bookings.Get(ctx, studioID, id)
	if err != nil {
		return nil, notFound(err, "booking %s not found", id)
	}
	return b, nil
}

// List returns bookings matching f after sweeping expired holds.
func (r *Reservations) List(ctx context.Context, f repository.BookingFilter) ([]model.Booking, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, booking.Validation("unknown status %q", f.Status)
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, booking.Validation("startDate must be before endDate")
	}
	if _, err := r.bookings.SweepExpiredHolds(ctx, f.StudioID, r.now()); err != nil {
		return nil, err
	}
	return r.bookings.List(ctx, f)
}

// SweepExpiredHolds cancels every expired hold across all studios.
func (r *Reservations) SweepExpiredHolds(ctx context.Context) (int64, error) {
	n, err := r.bookings.SweepExpiredHolds(ctx, "", r.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.log.Info("expired holds swept", zap.Int64("count", n))
	}
	return n, nil
}

// Confirm moves a soft hold to confirmed and clears its expiry.  An
// already confirmed booking is returned unchanged.  A hold that expired
// before confirmation is cancelled and reported as INVALID_STATE.
func (r *Reservations) Confirm(ctx context.Context, studioID, id string) (*model.Booking, error) {
	var (
		out     *model.Booking
		changed bool
		expired error
	)
	err := r.tx.WithTx(ctx, func(tx *sql.Tx) error {
		b, err := r.bookings.GetForUpdateTx(ctx, tx, studioID, id)
		if err != nil {
			return notFound(err, "booking %s not found", id)
		}
		out = b
		if b.Status == model.StatusConfirmed {
			return nil
		}
		now := r.now()
		if b.HoldExpired(now) {
			b.Status = model.StatusCancelled
			b.HoldExpiry = nil
			expired = booking.InvalidState("hold on booking %s expired", id)
			return r.bookings.SaveTx(ctx, tx, b)
		}
		if err := booking.CheckTransition(b.Status, model.StatusConfirmed); err != nil {
			return err
		}
		b.Status = model.StatusConfirmed
		b.HoldExpiry = nil
		changed = true
		return r.bookings.SaveTx(ctx, tx, b)
	})
	if err != nil {
		return nil, err
	}
	if expired != nil {
		return nil, expired
	}
	if changed {
		r.log.Info("booking confirmed", zap.String("booking_id", out.ID))
		r.afterConfirm(ctx, out, nil)
	}
	return out, nil
}

// CheckIn moves a confirmed booking to checked_in.
func (r *Reservations) CheckIn(ctx context.Context, studioID, id string) (*model.Booking, error) {
	var out *model.Booking
	err := r.tx.WithTx(ctx, func(tx *sql.Tx) error {
		b, err := r.bookings.GetForUpdateTx(ctx, tx, studioID, id)
		if err != nil {
			return notFound(err, "booking %s not found", id)
		}
		out = b
		if b.Status == model.StatusCheckedIn {
			return nil
		}
		if err := booking.CheckTransition(b.Status, model.StatusCheckedIn); err != nil {
			return err
		}
		b.Status = model.StatusCheckedIn
		return r.bookings.SaveTx(ctx, tx, b)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CompleteResult is the outcome of Complete.  DeductionErr carries a
// billing shortfall; the booking is completed regardless.
type CompleteResult struct {
	Booking      *model.Booking `json:"booking"`
	Deduction    *DeductResult  `json:"deduction,omitempty"`
	DeductionErr error          `json:"-"`
}

// Complete moves a confirmed or checked-in booking to completed, records
// the training session and charges the client's credits.  The charge
// runs in the completing transaction while the booking row is locked,
// so a concurrent Cancel either sees no completion or refunds the
// charge.  Calling it again on a completed booking retries the charge,
// which the ledger turns into a no-op when it already happened.
func (r *Reservations) Complete(ctx context.Context, studioID, id string) (*CompleteResult, error) {
	res, err := r.complete(ctx, studioID, id)
	if errors.Is(err, errUsageRace) {
		res, err = r.complete(ctx, studioID, id)
	}
	if err != nil {
		return nil, err
	}
	if res.DeductionErr != nil {
		r.log.Warn("credit deduction failed, booking completed anyway",
			zap.String("booking_id", res.Booking.ID),
			zap.Stringp("client_id", res.Booking.ClientID),
			zap.Error(res.DeductionErr))
	}
	if d := res.Deduction; d != nil && !d.AlreadyApplied {
		r.checkLowCredits(ctx, res.Booking, d.Remaining)
	}
	return res, nil
}

func (r *Reservations) complete(ctx context.Context, studioID, id string) (*CompleteResult, error) {
	res := &CompleteResult{}
	err := r.tx.WithTx(ctx, func(tx *sql.Tx) error {
		res.Deduction, res.DeductionErr = nil, nil
		b, err := r.bookings.GetForUpdateTx(ctx, tx, studioID, id)
		if err != nil {
			return notFound(err, "booking %s not found", id)
		}
		res.Booking = b
		if b.Status != model.StatusCompleted {
			if err := booking.CheckTransition(b.Status, model.StatusCompleted); err != nil {
				return err
			}
			session := &model.TrainingSession{
				ID:          uuid.NewString(),
				BookingID:   b.ID,
				TrainerID:   b.TrainerID,
				ClientID:    b.ClientID,
				CompletedAt: r.now().UTC(),
			}
			if err := r.bookings.CreateSessionTx(ctx, tx, session); err != nil {
				return err
			}
			b.Status = model.StatusCompleted
			b.SessionID = &session.ID
			if err := r.bookings.SaveTx(ctx, tx, b); err != nil {
				return err
			}
		}

		if b.ClientID == nil || r.ledger == nil {
			return nil
		}
		credits, err := r.creditCost(ctx, b)
		if err != nil {
			return err
		}
		if credits == 0 {
			return nil
		}
		d, err := r.ledger.DeductTx(ctx, tx, *b.ClientID, b.ID, credits)
		if err != nil {
			var de *booking.Error
			if errors.As(err, &de) {
				// shortfall: keep the completion and the lazy expiry updates
				res.DeductionErr = err
				return nil
			}
			return err
		}
		res.Deduction = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// creditCost is what completing b charges.  A booking without a service
// costs one credit and a free service costs nothing.
func (r *Reservations) creditCost(ctx context.Context, b *model.Booking) (int, error) {
	if b.ServiceID == nil {
		return 1, nil
	}
	svc, err := r.studios.Service(ctx, b.StudioID, *b.ServiceID)
	if errors.Is(err, repository.ErrNotFound) {
		r.log.Warn("service of completed booking not found, charging one credit",
			zap.String("booking_id", b.ID),
			zap.String("service_id", *b.ServiceID))
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load service %s: %w", *b.ServiceID, err)
	}
	return svc.CreditsRequired, nil
}

func (r *Reservations) checkLowCredits(ctx context.Context, b *model.Booking, remaining int) {
	threshold := model.DefaultStudioSettings(b.StudioID).LowCreditThreshold
	if s, err := r.studios.Settings(ctx, b.StudioID); err == nil {
		threshold = s.LowCreditThreshold
	}
	if remaining <= threshold {
		r.emit(ctx, queue.LowCredits{ClientID: *b.ClientID, StudioID: b.StudioID, Remaining: remaining})
	}
}

// Cancel soft-deletes a booking.  Any credit deduction of the booking is
// reversed in the same transaction; a failed reversal aborts the
// cancellation.  Cancelling a cancelled booking is a no-op.
func (r *Reservations) Cancel(ctx context.Context, studioID, id, reason string) (*model.Booking, error) {
	var (
		out      *model.Booking
		refunded *model.CreditUsage
		changed  bool
	)
	err := r.tx.WithTx(ctx, func(tx *sql.Tx) error {
		b, err := r.bookings.GetForUpdateTx(ctx, tx, studioID, id)
		if err != nil {
			return notFound(err, "booking %s not found", id)
		}
		out = b
		if b.Status == model.StatusCancelled {
			return nil
		}
		if err := booking.CheckTransition(b.Status, model.StatusCancelled); err != nil {
			return err
		}
		if refunded, err = r.refundTx(ctx, tx, b); err != nil {
			return err
		}
		b.Status = model.StatusCancelled
		b.HoldExpiry = nil
		changed = true
		return r.bookings.SaveTx(ctx, tx, b)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		r.log.Info("booking cancelled",
			zap.String("booking_id", out.ID),
			zap.String("reason", reason),
			zap.Bool("refunded", refunded != nil))
		r.emitCancelled(ctx, out, reason, refunded != nil)
	}
	return out, nil
}

// HardDelete removes a booking row.  Any deduction is reversed first, in
// the same transaction.
func (r *Reservations) HardDelete(ctx context.Context, studioID, id string) error {
	var (
		deleted  *model.Booking
		refunded *model.CreditUsage
	)
	err := r.tx.WithTx(ctx, func(tx *sql.Tx) error {
		b, err := r.bookings.GetForUpdateTx(ctx, tx, studioID, id)
		if err != nil {
			return notFound(err, "booking %s not found", id)
		}
		if refunded, err = r.refundTx(ctx, tx, b); err != nil {
			return err
		}
		if err := r.bookings.DeleteTx(ctx, tx, b.ID); err != nil {
			return notFound(err, "booking %s not found", id)
		}
		deleted = b
		return nil
	})
	if err != nil {
		return err
	}
	r.log.Info("booking deleted", zap.String("booking_id", deleted.ID), zap.Bool("refunded", refunded != nil))
	if deleted.Status.Active() {
		r.emitCancelled(ctx, deleted, "deleted", refunded != nil)
	}
	return nil
}

func (r *Reservations) refundTx(ctx context.Context, tx *sql.Tx, b *model.Booking) (*model.CreditUsage, error) {
	if r.ledger == nil {
		return nil, nil
	}
	u, err := r.ledger.RefundTx(ctx, tx, b.ID)
	if err != nil {
		r.log.Error("credit refund failed, booking left unchanged",
			zap.String("booking_id", b.ID),
			zap.Error(err))
		return nil, err
	}
	return u, nil
}

// UpdateInput carries the optional fields of a booking update.  Status
// is applied last through the matching transition.
type UpdateInput struct {
	ScheduledAt     *time.Time
	DurationMinutes *int
	ServiceID       *string
	ClientID        *string
	Notes           *string
	Status          *model.BookingStatus
	Reason          string
}

// Update edits a booking.  Moving it re-runs the opening-hours gate and
// the conflict check, ignoring the booking itself.
func (r *Reservations) Update(ctx context.Context, studioID, id string, in UpdateInput) (*model.Booking, error) {
	if in.ScheduledAt != nil || in.DurationMinutes != nil || in.ServiceID != nil || in.ClientID != nil || in.Notes != nil {
		if _, err := r.updateFields(ctx, studioID, id, in); err != nil {
			return nil, err
		}
	}
	if in.Status == nil {
		return r.Get(ctx, studioID, id)
	}
	switch *in.Status {
	case model.StatusConfirmed:
		return r.Confirm(ctx, studioID, id)
	case model.StatusCheckedIn:
		return r.CheckIn(ctx, studioID, id)
	case model.StatusCompleted:
		res, err := r.Complete(ctx, studioID, id)
		if err != nil {
			return nil, err
		}
		return res.Booking, nil
	case model.StatusCancelled:
		return r.Cancel(ctx, studioID, id, in.Reason)
	}
	return nil, booking.Validation("cannot set status to %q", *in.Status)
}

func (r *Reservations) updateFields(ctx context.Context, studioID, id string, in UpdateInput) (*model.Booking, error) {
	current, err := r.bookings.Get(ctx, studioID, id)
	if err != nil {
		return nil, notFound(err, "booking %s not found", id)
	}
	if in.ClientID != nil && *in.ClientID != "" {
		if _, err := r.clients.Get(ctx, studioID, *in.ClientID); err != nil {
			return nil, notFound(err, "client %s not found", *in.ClientID)
		}
	}
	var svc *model.Service
	if in.ServiceID != nil && *in.ServiceID != "" {
		if svc, err = r.studios.Service(ctx, studioID, *in.ServiceID); err != nil {
			return nil, notFound(err, "service %s not found", *in.ServiceID)
		}
	}
	moving := in.ScheduledAt != nil || in.DurationMinutes != nil || svc != nil
	var settings model.StudioSettings
	if moving {
		if settings, err = r.settings(ctx, studioID); err != nil {
			return nil, err
		}
	}

	var out *model.Booking
	err = r.tx.WithTx(ctx, func(tx *sql.Tx) error {
		now := r.now().UTC()
		if moving {
			if err := r.lockCalendar(ctx, tx, studioID, current.TrainerID, now); err != nil {
				return err
			}
		}
		b, err := r.bookings.GetForUpdateTx(ctx, tx, studioID, id)
		if err != nil {
			return notFound(err, "booking %s not found", id)
		}
		if in.Notes != nil {
			b.Notes = strings.TrimSpace(*in.Notes)
		}
		if in.ClientID != nil {
			b.ClientID = nonEmpty(*in.ClientID)
		}
		if in.ServiceID != nil {
			b.ServiceID = nonEmpty(*in.ServiceID)
		}
		if moving {
			if b.Status != model.StatusSoftHold && b.Status != model.StatusConfirmed {
				return booking.InvalidState("booking in status %s cannot be rescheduled", b.Status)
			}
			if in.ScheduledAt != nil {
				b.ScheduledAt = in.ScheduledAt.UTC()
			}
			switch {
			case in.DurationMinutes != nil:
				b.DurationMinutes = *in.DurationMinutes
			case svc != nil:
				b.DurationMinutes = svc.DurationMinutes
			}
			if err := validDuration(b.DurationMinutes); err != nil {
				return err
			}
			candidate := booking.NewInterval(b.ScheduledAt, b.DurationMinutes)
			if err := booking.CheckOpeningHours(settings, candidate); err != nil {
				return err
			}
			if err := r.checkConflict(ctx, tx, b.TrainerID, candidate, b.ID, now); err != nil {
				return err
			}
		}
		if err := r.bookings.SaveTx(ctx, tx, b); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return booking.Conflict("trainer already has a booking starting at %s", b.ScheduledAt.Format(time.RFC3339))
			}
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	if moving && out.Status == model.StatusConfirmed {
		r.scheduleReminders(ctx, out)
	}
	return out, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// afterConfirm publishes BookingConfirmed and queues reminders.  Neither
// can fail the caller.
func (r *Reservations) afterConfirm(ctx context.Context, b *model.Booking, svc *model.Service) {
	r.emit(ctx, r.confirmedEvent(ctx, b, svc))
	r.scheduleReminders(ctx, b)
}

func (r *Reservations) scheduleReminders(ctx context.Context, b *model.Booking) {
	if r.reminders == nil {
		return
	}
	if err := r.reminders.ScheduleReminders(ctx, *b); err != nil {
		r.log.Warn("schedule reminders failed", zap.String("booking_id", b.ID), zap.Error(err))
	}
}

// confirmedEvent builds the notification payload of b, filling in the
// client email and trainer and service names on a best-effort basis.
func (r *Reservations) confirmedEvent(ctx context.Context, b *model.Booking, svc *model.Service) queue.BookingConfirmed {
	ev := queue.BookingConfirmed{
		BookingID:       b.ID,
		StudioID:        b.StudioID,
		ScheduledAt:     b.ScheduledAt.UTC(),
		DurationMinutes: b.DurationMinutes,
		ClientEmail:     r.clientEmail(ctx, b),
	}
	if t, err := r.studios.Trainer(ctx, b.StudioID, b.TrainerID); err == nil {
		ev.TrainerName = t.Name
	}
	if svc == nil && b.ServiceID != nil {
		svc, _ = r.studios.Service(ctx, b.StudioID, *b.ServiceID)
	}
	if svc != nil {
		ev.ServiceName = svc.Name
	}
	return ev
}

func (r *Reservations) clientEmail(ctx context.Context, b *model.Booking) string {
	if b.ClientID == nil {
		return ""
	}
	c, err := r.clients.Get(ctx, b.StudioID, *b.ClientID)
	if err != nil {
		return ""
	}
	return c.Email
}

func (r *Reservations) emitCancelled(ctx context.Context, b *model.Booking, reason string, refunded bool) {
	r.emit(ctx, queue.BookingCancelled{
		BookingID:   b.ID,
		StudioID:    b.StudioID,
		ClientEmail: r.clientEmail(ctx, b),
		ScheduledAt: b.ScheduledAt.UTC(),
		Reason:      reason,
		Refunded:    refunded,
	})
}

// emit publishes ev and swallows failures.
func (r *Reservations) emit(ctx context.Context, ev queue.Event) {
	if r.emitter == nil {
		return
	}
	if err := r.emitter.Emit(ctx, ev); err != nil {
		r.log.Warn("notification dropped", zap.String("event", ev.RoutingKey()), zap.Error(err))
	}
}

// Remind emits ReminderDue for a booking that is still confirmed or
// checked in at the instant the reminder was scheduled for.  Stale
// reminders are dropped silently.
func (r *Reservations) Remind(ctx context.Context, bookingID string, scheduledAt time.Time, hoursBefore int) error {
	b, err := r.bookings.Get(ctx, "", bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load booking %s: %w", bookingID, err)
	}
	if b.Status != model.StatusConfirmed && b.Status != model.StatusCheckedIn {
		return nil
	}
	if !b.ScheduledAt.Equal(scheduledAt) {
		return nil
	}
	r.emit(ctx, queue.ReminderDue{BookingConfirmed: r.confirmedEvent(ctx, b, nil), HoursBefore: hoursBefore})
	return nil
}
