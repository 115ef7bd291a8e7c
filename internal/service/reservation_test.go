package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/trainer-booking/internal/booking"
	"github.com/iliyamo/trainer-booking/internal/model"
	"github.com/iliyamo/trainer-booking/internal/queue"
	"github.com/iliyamo/trainer-booking/internal/repository"
	"github.com/iliyamo/trainer-booking/internal/service"
)

func confirmedInput(start time.Time, minutes int) service.CreateInput {
	return service.CreateInput{
		StudioID:        studioID,
		TrainerID:       trainerID,
		ClientID:        ptr(clientID),
		ScheduledAt:     start,
		DurationMinutes: minutes,
		Status:          model.StatusConfirmed,
	}
}

func TestCreateRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.res.Create(ctx, confirmedInput(monday(10, 0), 60))
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, first.Status)
	assert.Nil(t, first.HoldExpiry)

	_, err = f.res.Create(ctx, confirmedInput(monday(10, 30), 60))
	require.ErrorIs(t, err, booking.ErrConflict)

	second, err := f.res.Create(ctx, confirmedInput(monday(11, 0), 60))
	require.NoError(t, err, "touching intervals do not overlap")
	third, err := f.res.Create(ctx, confirmedInput(monday(9, 0), 60))
	require.NoError(t, err)

	assert.Len(t, f.store.AllBookings(), 3)
	assert.ElementsMatch(t, []string{first.ID, second.ID, third.ID}, f.reminders.Scheduled())
	assert.Len(t, f.emitter.Events(queue.KeyBookingConfirmed), 3)
}

func TestCreateIgnoresCancelledAndOtherTrainers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.AddTrainer(model.Trainer{ID: "trainer-2", StudioID: studioID, Name: "Bo"})

	b, err := f.res.Create(ctx, confirmedInput(monday(10, 0), 60))
	require.NoError(t, err)

	other := confirmedInput(monday(10, 0), 60)
	other.TrainerID = "trainer-2"
	_, err = f.res.Create(ctx, other)
	require.NoError(t, err)

	_, err = f.res.Cancel(ctx, studioID, b.ID, "client request")
	require.NoError(t, err)
	_, err = f.res.Create(ctx, confirmedInput(monday(10, 0), 60))
	require.NoError(t, err, "a cancelled booking frees its slot")
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		mut  func(*service.CreateInput)
		code string
	}{
		{"zero duration", func(in *service.CreateInput) { in.DurationMinutes = 0 }, booking.CodeValidation},
		{"too long", func(in *service.CreateInput) { in.DurationMinutes = booking.MaxDurationMinutes + 1 }, booking.CodeValidation},
		{"bad status", func(in *service.CreateInput) { in.Status = model.StatusCompleted }, booking.CodeValidation},
		{"unknown trainer", func(in *service.CreateInput) { in.TrainerID = "nobody" }, booking.CodeNotFound},
		{"unknown client", func(in *service.CreateInput) { in.ClientID = ptr("ghost") }, booking.CodeNotFound},
		{"unknown service", func(in *service.CreateInput) { in.ServiceID = ptr("ghost") }, booking.CodeNotFound},
		{"unknown studio", func(in *service.CreateInput) { in.StudioID = "studio-x" }, booking.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := confirmedInput(monday(10, 0), 60)
			tc.mut(&in)
			_, err := f.res.Create(ctx, in)
			require.Error(t, err)
			assert.Equal(t, tc.code, booking.CodeOf(err))
		})
	}
	assert.Empty(t, f.store.AllBookings())
}

func TestCreateTakesDurationFromService(t *testing.T) {
	f := newFixture(t)
	in := confirmedInput(monday(10, 0), 0)
	in.ServiceID = ptr(serviceID)
	b, err := f.res.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 60, b.DurationMinutes)
}

func TestCreateOutsideOpeningHours(t *testing.T) {
	f := newFixture(t, func(s *model.StudioSettings) {
		s.OpeningHours = []model.OpeningWindow{{Weekday: time.Monday, OpenMinute: 9 * 60, CloseMinute: 18 * 60}}
	})
	ctx := context.Background()

	_, err := f.res.Create(ctx, confirmedInput(monday(17, 30), 60))
	require.ErrorIs(t, err, booking.ErrConflict)
	_, err = f.res.Create(ctx, confirmedInput(monday(17, 0), 60))
	require.NoError(t, err)
}

func TestConcurrentCreatesProduceOneBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// every request overlaps 10:00-11:00
			_, err := f.res.Create(ctx, confirmedInput(monday(9, 30+i), 60))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case booking.CodeOf(err) == booking.CodeConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
	assert.Len(t, f.store.AllBookings(), 1)
}

func TestSoftHoldExpiryFreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	hold, _, err := f.res.CreatePublic(ctx, f.ids, service.PublicInput{
		StudioID:        studioID,
		TrainerID:       trainerID,
		ScheduledAt:     monday(10, 0),
		DurationMinutes: 60,
		Email:           "walkin@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, model.StatusSoftHold, hold.Status)
	require.NotNil(t, hold.HoldExpiry)
	assert.Equal(t, f.clock.Now().Add(120*time.Minute), *hold.HoldExpiry)

	_, err = f.res.Create(ctx, confirmedInput(monday(10, 0), 60))
	require.ErrorIs(t, err, booking.ErrConflict)

	f.clock.Advance(120 * time.Minute)

	b, err := f.res.Create(ctx, confirmedInput(monday(10, 0), 60))
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, b.Status)

	stale, err := f.res.Get(ctx, studioID, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, stale.Status)
	assert.Nil(t, stale.HoldExpiry)
}

func TestExpiredHoldIsCancelledOnRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := confirmedInput(monday(10, 0), 60)
	in.Status = model.StatusSoftHold
	hold, err := f.res.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(15*time.Minute), *hold.HoldExpiry)

	f.clock.Advance(15 * time.Minute)
	list, err := f.res.List(ctx, repository.BookingFilter{StudioID: studioID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.StatusCancelled, list[0].Status)
}

func TestSoftHoldsDisabledConfirmsDirectly(t *testing.T) {
	f := newFixture(t, func(s *model.StudioSettings) { s.SoftHoldsEnabled = false })
	in := confirmedInput(monday(10, 0), 60)
	in.Status = model.StatusSoftHold
	b, err := f.res.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, b.Status)
	assert.Nil(t, b.HoldExpiry)
}

func TestTrainerLedStudioRejectsPublicBookings(t *testing.T) {
	f := newFixture(t, func(s *model.StudioSettings) { s.BookingModel = model.BookingModelTrainerLed })
	ctx := context.Background()

	_, _, err := f.res.CreatePublic(ctx, f.ids, service.PublicInput{
		StudioID:        studioID,
		TrainerID:       trainerID,
		ScheduledAt:     monday(10, 0),
		DurationMinutes: 60,
		Email:           "walkin@example.com",
	})
	require.ErrorIs(t, err, booking.ErrConflict)
	assert.Len(t, f.store.Clients(studioID), 1, "no guest client is created")

	_, err = f.res.Create(ctx, confirmedInput(monday(10, 0), 60))
	require.NoError(t, err, "staff bookings are still accepted")
}

func TestRejectedPublicBookingCreatesNoGuest(t *testing.T) {
	f := newFixture(t, func(s *model.StudioSettings) {
		s.OpeningHours = []model.OpeningWindow{{Weekday: time.Monday, OpenMinute: 9 * 60, CloseMinute: 18 * 60}}
	})
	ctx := context.Background()
	_, err := f.res.Create(ctx, confirmedInput(monday(10, 0), 60))
	require.NoError(t, err)

	public := func(start time.Time, trainer string) service.PublicInput {
		return service.PublicInput{
			StudioID:        studioID,
			TrainerID:       trainer,
			ScheduledAt:     start,
			DurationMinutes: 60,
			Email:           "walkin@example.com",
		}
	}
	cases := []struct {
		name string
		in   service.PublicInput
		want error
	}{
		{"outside opening hours", public(monday(17, 30), trainerID), booking.ErrConflict},
		{"overlapping booking", public(monday(10, 30), trainerID), booking.ErrConflict},
		{"unknown trainer", public(monday(12, 0), "trainer-x"), booking.ErrNotFound},
		{"bad duration", service.PublicInput{StudioID: studioID, TrainerID: trainerID, ScheduledAt: monday(12, 0), DurationMinutes: -30, Email: "walkin@example.com"}, booking.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.res.CreatePublic(ctx, f.ids, tc.in)
			require.ErrorIs(t, err, tc.want)
			assert.Len(t, f.store.Clients(studioID), 1)
		})
	}

	b, c, err := f.res.CreatePublic(ctx, f.ids, public(monday(12, 0), trainerID))
	require.NoError(t, err)
	assert.Equal(t, model.StatusSoftHold, b.Status)
	assert.Equal(t, c.ID, *b.ClientID)
	assert.Len(t, f.store.Clients(studioID), 2)
}

func TestConfirmHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := confirmedInput(monday(10, 0), 60)
	in.Status = model.StatusSoftHold
	hold, err := f.res.Create(ctx, in)
	require.NoError(t, err)
	assert.Empty(t, f.emitter.Keys())

	b, err := f.res.Confirm(ctx, studioID, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, b.Status)
	assert.Nil(t, b.HoldExpiry)
	assert.Equal(t, []string{queue.KeyBookingConfirmed}, f.emitter.Keys())

	ev := f.emitter.Events(queue.KeyBookingConfirmed)[0].(queue.BookingConfirmed)
	assert.Equal(t, "sam@example.com", ev.ClientEmail)
	assert.Equal(t, "Alex", ev.TrainerName)

	again, err := f.res.Confirm(ctx, studioID, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, again.Status)
	assert.Len(t, f.emitter.Keys(), 1, "confirming twice emits once")
}

func TestConfirmExpiredHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := confirmedInput(monday(10, 0), 60)
	in.Status = model.StatusSoftHold
	hold, err := f.res.Create(ctx, in)
	require.NoError(t, err)

	f.clock.Advance(16 * time.Minute)
	_, err = f.res.Confirm(ctx, studioID, hold.ID)
	require.ErrorIs(t, err, booking.ErrInvalidState)

	stored, ok := f.store.Booking(hold.ID)
	require.True(t, ok)
	assert.Equal(t, model.StatusCancelled, stored.Status)
}

func TestTransitionGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.res.Create(ctx, confirmedInput(monday(10, 0), 60))
	require.NoError(t, err)
	_, err = f.res.Cancel(ctx, studioID, b.ID, "")
	require.NoError(t, err)

	_, err = f.res.Confirm(ctx, studioID, b.ID)
	assert.ErrorIs(t, err, booking.ErrInvalidState)
	_, err = f.res.CheckIn(ctx, studioID, b.ID)
	assert.ErrorIs(t, err, booking.ErrInvalidState)
	_, err = f.res.Complete(ctx, studioID, b.ID)
	assert.ErrorIs(t, err, booking.ErrInvalidState)

	again, err := f.res.Cancel(ctx, studioID, b.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, again.Status)
	assert.Len(t, f.emitter.Events(queue.KeyBookingCancelled), 1)

	_, err = f.res.Get(ctx, "studio-2", b.ID)
	assert.ErrorIs(t, err, booking.ErrNotFound, "bookings are tenant scoped")
}

func TestCompleteDeductsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPackage("pkg-1", 10, 0, nil)

	in := confirmedInput(monday(10, 0), 0)
	in.ServiceID = ptr(serviceID)
	b, err := f.res.Create(ctx, in)
	require.NoError(t, err)

	_, err = f.res.CheckIn(ctx, studioID, b.ID)
	require.NoError(t, err)

	res, err := f.res.Complete(ctx, studioID, b.ID)
	require.NoError(t, err)
	require.NoError(t, res.DeductionErr)
	assert.Equal(t, model.StatusCompleted, res.Booking.Status)
	require.NotNil(t, res.Booking.SessionID)
	require.NotNil(t, res.Deduction)
	assert.False(t, res.Deduction.AlreadyApplied)
	assert.Equal(t, 9, res.Deduction.Remaining)

	res, err = f.res.Complete(ctx, studioID, b.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Deduction)
	assert.True(t, res.Deduction.AlreadyApplied)

	p := f.store.Package("pkg-1")
	assert.Equal(t, 1, p.SessionsUsed)
	assert.Len(t, f.store.Usages("pkg-1"), 1)
	assert.Equal(t, 1, f.store.Sessions())
}

func TestCompleteWithoutCreditsStillCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.res.Create(ctx, confirmedInput(monday(10, 0), 60))
	require.NoError(t, err)

	res, err := f.res.Complete(ctx, studioID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, res.Booking.Status)
	assert.ErrorIs(t, res.DeductionErr, booking.ErrNoActivePackage)
	assert.Nil(t, res.Deduction)
}

func TestCompleteEmitsLowCredits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPackage("pkg-1", 2, 0, nil)

	b, err := f.res.Create(ctx, confirmedInput(monday(10, 0), 60))
	require.NoError(t, err)
	_, err = f.res.Complete(ctx, studioID, b.ID)
	require.NoError(t, err)

	low := f.emitter.Events(queue.KeyLowCredits)
	require.Len(t, low, 1)
	assert.Equal(t, 1, low[0].(queue.LowCredits).Remaining)
}

func TestCancelDuringCompleteLeavesNoCharge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPackage("pkg-1", 10, 0, nil)

	in := confirmedInput(monday(10, 0), 0)
	in.ServiceID = ptr(serviceID)
	b, err := f.res.Create(ctx, in)
	require.NoError(t, err)

	// Cancel is started while Complete is looking up the price.
	studios := f.store.Studios()
	var (
		once      sync.Once
		cancelled = make(chan error, 1)
	)
	f.useStudios(serviceLookup{StudioStore: studios, fn: func(ctx context.Context, st, id string) (*model.Service, error) {
		once.Do(func() {
			go func() {
				_, err := f.res.Cancel(context.Background(), studioID, b.ID, "client left")
				cancelled <- err
			}()
			time.Sleep(20 * time.Millisecond)
		})
		return studios.Service(ctx, st, id)
	}})

	_, err = f.res.Complete(ctx, studioID, b.ID)
	require.NoError(t, err)
	require.NoError(t, <-cancelled)

	stored, _ := f.store.Booking(b.ID)
	assert.Equal(t, model.StatusCancelled, stored.Status)
	assert.Equal(t, 0, f.store.Package("pkg-1").SessionsUsed)
	assert.Empty(t, f.store.Usages("pkg-1"))

	balance, err := f.ledger.Balance(ctx, clientID)
	require.NoError(t, err)
	assert.Equal(t, 10, balance)
}

func TestCompleteFreeServiceChargesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.AddService(model.Service{ID: "svc-free", StudioID: studioID, Name: "Intro", DurationMinutes: 30})

	in := confirmedInput(monday(10, 0), 0)
	in.ServiceID = ptr("svc-free")
	b, err := f.res.Create(ctx, in)
	require.NoError(t, err)

	t.Run("without a package", func(t *testing.T) {
		res, err := f.res.Complete(ctx, studioID, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, res.Booking.Status)
		assert.NoError(t, res.DeductionErr)
		assert.Nil(t, res.Deduction)
	})

	t.Run("with a package", func(t *testing.T) {
		f.addPackage("pkg-1", 10, 0, nil)
		res, err := f.res.Complete(ctx, studioID, b.ID)
		require.NoError(t, err)
		assert.Nil(t, res.Deduction)
		assert.Equal(t, 0, f.store.Package("pkg-1").SessionsUsed)
		assert.Empty(t, f.store.Usages("pkg-1"))
	})
}

func TestCompleteChargesServicePrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPackage("pkg-1", 10, 0, nil)
	f.store.AddService(model.Service{ID: "svc-double", StudioID: studioID, Name: "Double", DurationMinutes: 120, CreditsRequired: 2})

	in := confirmedInput(monday(10, 0), 0)
	in.ServiceID = ptr("svc-double")
	b, err := f.res.Create(ctx, in)
	require.NoError(t, err)

	res, err := f.res.Complete(ctx, studioID, b.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Deduction)
	assert.Equal(t, 2, res.Deduction.Usage.CreditsUsed)
	assert.Equal(t, 8, res.Deduction.Remaining)
}

func TestCompleteRollsBackWhenServiceLookupFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPackage("pkg-1", 10, 0, nil)
	f.store.AddService(model.Service{ID: "svc-double", StudioID: studioID, Name: "Double", DurationMinutes: 120, CreditsRequired: 2})

	in := confirmedInput(monday(10, 0), 0)
	in.ServiceID = ptr("svc-double")
	b, err := f.res.Create(ctx, in)
	require.NoError(t, err)

	studios := f.store.Studios()
	lookupErr := errors.New("connection reset")
	f.useStudios(serviceLookup{StudioStore: studios, fn: func(context.Context, string, string) (*model.Service, error) {
		return nil, lookupErr
	}})
	_, err = f.res.Complete(ctx, studioID, b.ID)
	require.ErrorIs(t, err, lookupErr)

	stored, _ := f.store.Booking(b.ID)
	assert.Equal(t, model.StatusConfirmed, stored.Status)
	assert.Equal(t, 0, f.store.Sessions())
	assert.Equal(t, 0, f.store.Package("pkg-1").SessionsUsed)

	f.useStudios(studios)
	res, err := f.res.Complete(ctx, studioID, b.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Deduction)
	assert.Equal(t, 2, res.Deduction.Usage.CreditsUsed)
}

func TestCompleteWithMissingServiceChargesOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPackage("pkg-1", 10, 0, nil)

	in := confirmedInput(monday(10, 0), 0)
	in.ServiceID = ptr(serviceID)
	b, err := f.res.Create(ctx, in)
	require.NoError(t, err)

	f.useStudios(serviceLookup{StudioStore: f.store.Studios(), fn: func(context.Context, string, string) (*model.Service, error) {
		return nil, repository.ErrNotFound
	}})
	res, err := f.res.Complete(ctx, studioID, b.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Deduction)
	assert.Equal(t, 1, res.Deduction.Usage.CreditsUsed)
}

func TestCancelCompletedRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPackage("pkg-1", 1, 0, nil)

	b, err := f.res.Create(ctx, confirmedInput(monday(10, 0), 60))
	require.NoError(t, err)
	_, err = f.res.Complete(ctx, studioID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PackageExhausted, f.store.Package("pkg-1").Status)

	c, err := f.res.Cancel(ctx, studioID, b.ID, "charged by mistake")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, c.Status)

	p := f.store.Package("pkg-1")
	assert.Equal(t, 0, p.SessionsUsed)
	assert.Equal(t, model.PackageActive, p.Status)
	assert.Empty(t, f.store.Usages("pkg-1"))

	cancelled := f.emitter.Events(queue.KeyBookingCancelled)
	require.Len(t, cancelled, 1)
	assert.True(t, cancelled[0].(queue.BookingCancelled).Refunded)
}

func TestCancelRollsBackWhenRefundFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPackage("pkg-1", 5, 0, nil)

	b, err := f.res.Create(ctx, confirmedInput(monday(10, 0), 60))
	require.NoError(t, err)
	_, err = f.res.Complete(ctx, studioID, b.ID)
	require.NoError(t, err)

	f.store.FailRestore = true
	_, err = f.res.Cancel(ctx, studioID, b.ID, "")
	require.ErrorIs(t, err, booking.ErrLedgerInconsistent)

	stored, _ := f.store.Booking(b.ID)
	assert.Equal(t, model.StatusCompleted, stored.Status)
	assert.Equal(t, 1, f.store.Package("pkg-1").SessionsUsed)
	assert.Len(t, f.store.Usages("pkg-1"), 1)
	assert.Empty(t, f.emitter.Events(queue.KeyBookingCancelled))
}

func TestHardDeleteRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPackage("pkg-1", 5, 0, nil)

	b, err := f.res.Create(ctx, confirmedInput(monday(10, 0), 60))
	require.NoError(t, err)
	_, err = f.res.Complete(ctx, studioID, b.ID)
	require.NoError(t, err)

	require.NoError(t, f.res.HardDelete(ctx, studioID, b.ID))
	_, ok := f.store.Booking(b.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, f.store.Package("pkg-1").SessionsUsed)
	assert.Equal(t, 0, f.store.Sessions())

	assert.ErrorIs(t, f.res.HardDelete(ctx, studioID, b.ID), booking.ErrNotFound)
}

func TestUpdateReschedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.res.Create(ctx, confirmedInput(monday(10, 0), 60))
	require.NoError(t, err)
	b, err := f.res.Create(ctx, confirmedInput(monday(12, 0), 60))
	require.NoError(t, err)

	moved, err := f.res.Update(ctx, studioID, a.ID, service.UpdateInput{ScheduledAt: ptr(monday(10, 30))})
	require.NoError(t, err, "a booking does not conflict with itself")
	assert.Equal(t, monday(10, 30), moved.ScheduledAt)

	_, err = f.res.Update(ctx, studioID, b.ID, service.UpdateInput{ScheduledAt: ptr(monday(11, 0))})
	require.ErrorIs(t, err, booking.ErrConflict)

	stored, _ := f.store.Booking(b.ID)
	assert.Equal(t, monday(12, 0), stored.ScheduledAt)

	done, err := f.res.Update(ctx, studioID, b.ID, service.UpdateInput{
		Notes:  ptr("  bring towel "),
		Status: ptr(model.StatusCancelled),
		Reason: "sick",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, done.Status)
	assert.Equal(t, "bring towel", done.Notes)

	_, err = f.res.Update(ctx, studioID, b.ID, service.UpdateInput{ScheduledAt: ptr(monday(15, 0))})
	assert.ErrorIs(t, err, booking.ErrInvalidState)
}

func TestRemindSkipsStaleBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.res.Create(ctx, confirmedInput(monday(10, 0), 60))
	require.NoError(t, err)

	require.NoError(t, f.res.Remind(ctx, b.ID, monday(10, 0), 24))
	require.NoError(t, f.res.Remind(ctx, b.ID, monday(9, 0), 24), "rescheduled booking")
	require.NoError(t, f.res.Remind(ctx, "missing", monday(10, 0), 24))

	due := f.emitter.Events(queue.KeyReminderDue)
	require.Len(t, due, 1)
	assert.Equal(t, 24, due[0].(queue.ReminderDue).HoursBefore)
	assert.Equal(t, b.ID, due[0].(queue.ReminderDue).BookingID)
}

func TestEmitterFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t)
	f.emitter.Err = assert.AnError

	b, err := f.res.Create(context.Background(), confirmedInput(monday(10, 0), 60))
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, b.Status)
}
