package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRoutingKeys(t *testing.T) {
	assert.Equal(t, "booking.confirmed", BookingConfirmed{}.RoutingKey())
	assert.Equal(t, "booking.cancelled", BookingCancelled{}.RoutingKey())
	assert.Equal(t, "booking.reminder", ReminderDue{}.RoutingKey())
	assert.Equal(t, "credits.low", LowCredits{}.RoutingKey())
}

func TestReminderDueFlattensBookingFields(t *testing.T) {
	body, err := json.Marshal(ReminderDue{
		BookingConfirmed: BookingConfirmed{BookingID: "bk-1", TrainerName: "Sam"},
		HoursBefore:      24,
	})
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Equal(t, "bk-1", m["booking_id"])
	assert.Equal(t, float64(24), m["hours_before"])
}

func TestNotificationSinkAppendsLines(t *testing.T) {
	dir := t.TempDir()
	sink := NewNotificationSink(dir)
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	body, _ := json.Marshal(BookingConfirmed{BookingID: "bk-1", ClientEmail: "a@b.c", TrainerName: "Sam", ScheduledAt: at, DurationMinutes: 60})
	require.NoError(t, sink.Handle(context.Background(), amqp.Delivery{RoutingKey: KeyBookingConfirmed, Body: body}))
	body, _ = json.Marshal(LowCredits{ClientID: "cl-1", Remaining: 1})
	require.NoError(t, sink.Handle(context.Background(), amqp.Delivery{RoutingKey: KeyLowCredits, Body: body}))

	raw, err := os.ReadFile(filepath.Join(dir, "notifications.log"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Booking confirmed | booking_id=bk-1")
	assert.Contains(t, string(raw), "at=2026-03-02T10:00:00Z")
	assert.Contains(t, string(raw), "Low credits | client_id=cl-1 | remaining=1")
}

func TestNotificationSinkRejectsUnknownKey(t *testing.T) {
	err := NewNotificationSink(t.TempDir()).Handle(context.Background(), amqp.Delivery{RoutingKey: "x.y", Body: []byte("{}")})
	assert.True(t, errors.Is(err, ErrPermanent))
}

type recordingProcessor struct{ got []PaymentEvent }

func (r *recordingProcessor) HandlePayment(_ context.Context, ev PaymentEvent) error {
	r.got = append(r.got, ev)
	return nil
}

func TestPaymentHandler(t *testing.T) {
	p := &recordingProcessor{}
	h := PaymentHandler(p)

	err := h(context.Background(), amqp.Delivery{
		RoutingKey: PaymentCheckoutCompleted,
		Body:       []byte(`{"id":"evt_1","booking_id":"bk-1"}`),
	})
	require.NoError(t, err)
	require.Len(t, p.got, 1)
	assert.Equal(t, PaymentCheckoutCompleted, p.got[0].Kind)

	err = h(context.Background(), amqp.Delivery{Body: []byte(`not json`)})
	assert.True(t, errors.Is(err, ErrPermanent))

	err = h(context.Background(), amqp.Delivery{Body: []byte(`{"kind":"payment.failed"}`)})
	assert.True(t, errors.Is(err, ErrPermanent))
	assert.Len(t, p.got, 1)
}

type recordingPublisher struct {
	key  string
	body []byte
}

func (r *recordingPublisher) PublishJSON(_ context.Context, key string, body []byte) error {
	r.key, r.body = key, body
	return nil
}

func TestPaymentForwarderRoutesByKind(t *testing.T) {
	pub := &recordingPublisher{}
	ev := PaymentEvent{ID: "evt_1", Kind: PaymentChargeRefunded, BookingID: "b1", Amount: 500}
	require.NoError(t, PaymentForwarder{Pub: pub}.HandlePayment(context.Background(), ev))

	assert.Equal(t, "charge.refunded", pub.key)
	var got PaymentEvent
	require.NoError(t, json.Unmarshal(pub.body, &got))
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, ev.BookingID, got.BookingID)
}
