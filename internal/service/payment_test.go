package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/trainer-booking/internal/model"
	"github.com/iliyamo/trainer-booking/internal/queue"
	"github.com/iliyamo/trainer-booking/internal/service"
)

func newPayments(f *fixture) *service.Payments {
	return service.NewPayments(f.store.PaymentEvents(), f.res, nil)
}

func holdFor(t *testing.T, f *fixture) *model.Booking {
	t.Helper()
	in := confirmedInput(monday(10, 0), 60)
	in.Status = model.StatusSoftHold
	b, err := f.res.Create(context.Background(), in)
	require.NoError(t, err)
	return b
}

func TestCheckoutCompletedConfirmsOnce(t *testing.T) {
	f := newFixture(t)
	p := newPayments(f)
	ctx := context.Background()
	hold := holdFor(t, f)

	ev := queue.PaymentEvent{ID: "evt_1", Kind: queue.PaymentCheckoutCompleted, BookingID: hold.ID}
	require.NoError(t, p.HandlePayment(ctx, ev))
	stored, _ := f.store.Booking(hold.ID)
	assert.Equal(t, model.StatusConfirmed, stored.Status)
	assert.True(t, f.store.Processed("evt_1"))

	// redelivery after a cancel must not re-confirm anything
	_, err := f.res.Cancel(ctx, studioID, hold.ID, "")
	require.NoError(t, err)
	require.NoError(t, p.HandlePayment(ctx, ev))
	stored, _ = f.store.Booking(hold.ID)
	assert.Equal(t, model.StatusCancelled, stored.Status)
	assert.Len(t, f.emitter.Events(queue.KeyBookingConfirmed), 1)
}

func TestPaymentFailedCancelsHold(t *testing.T) {
	f := newFixture(t)
	p := newPayments(f)
	hold := holdFor(t, f)

	require.NoError(t, p.HandlePayment(context.Background(),
		queue.PaymentEvent{ID: "evt_2", Kind: queue.PaymentFailed, BookingID: hold.ID}))
	stored, _ := f.store.Booking(hold.ID)
	assert.Equal(t, model.StatusCancelled, stored.Status)
}

func TestPaymentFailedIgnoredForCompleted(t *testing.T) {
	f := newFixture(t)
	p := newPayments(f)
	ctx := context.Background()
	b, err := f.res.Create(ctx, confirmedInput(monday(10, 0), 60))
	require.NoError(t, err)
	_, err = f.res.Complete(ctx, studioID, b.ID)
	require.NoError(t, err)

	require.NoError(t, p.HandlePayment(ctx, queue.PaymentEvent{ID: "evt_3", Kind: queue.PaymentFailed, BookingID: b.ID}))
	stored, _ := f.store.Booking(b.ID)
	assert.Equal(t, model.StatusCompleted, stored.Status)
	assert.True(t, f.store.Processed("evt_3"))
}

func TestChargeRefundedCancelsAndRefunds(t *testing.T) {
	f := newFixture(t)
	p := newPayments(f)
	ctx := context.Background()
	f.addPackage("pkg-1", 5, 0, nil)
	b, err := f.res.Create(ctx, confirmedInput(monday(10, 0), 60))
	require.NoError(t, err)
	_, err = f.res.Complete(ctx, studioID, b.ID)
	require.NoError(t, err)

	require.NoError(t, p.HandlePayment(ctx, queue.PaymentEvent{ID: "evt_4", Kind: queue.PaymentChargeRefunded, BookingID: b.ID}))
	stored, _ := f.store.Booking(b.ID)
	assert.Equal(t, model.StatusCancelled, stored.Status)
	assert.Equal(t, 0, f.store.Package("pkg-1").SessionsUsed)
}

func TestPaymentEventsThatCannotApplyAreAcknowledged(t *testing.T) {
	f := newFixture(t)
	p := newPayments(f)
	ctx := context.Background()

	require.NoError(t, p.HandlePayment(ctx, queue.PaymentEvent{ID: "evt_5", Kind: "invoice.paid", BookingID: "x"}))
	assert.True(t, f.store.Processed("evt_5"))
	require.NoError(t, p.HandlePayment(ctx, queue.PaymentEvent{ID: "evt_6", Kind: queue.PaymentCheckoutCompleted, BookingID: "missing"}))
	assert.True(t, f.store.Processed("evt_6"))
}
