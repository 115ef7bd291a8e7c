package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/trainer-booking/internal/queue"
)

const secret = "whsec_test"

func sign(payload string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func eventJSON(id, typ, object string) string {
	return fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"created":1772445600,"api_version":"2020-08-27","data":{"object":%s}}`,
		id, typ, object)
}

func TestParseCheckoutCompleted(t *testing.T) {
	payload := eventJSON("evt_1", "checkout.session.completed",
		`{"id":"cs_1","object":"checkout.session","amount_total":4500,"currency":"eur","metadata":{"booking_id":"b-1"}}`)

	ev, err := NewStripeWebhook(secret).Parse([]byte(payload), sign(payload, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, queue.PaymentEvent{
		ID:        "evt_1",
		Kind:      queue.PaymentCheckoutCompleted,
		BookingID: "b-1",
		Amount:    4500,
		Currency:  "eur",
		At:        time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}, ev)
}

func TestParseKinds(t *testing.T) {
	cases := []struct {
		typ    string
		object string
		kind   string
		amount int64
	}{
		{"payment_intent.payment_failed",
			`{"id":"pi_1","object":"payment_intent","amount":4500,"currency":"eur","metadata":{"booking_id":"b-1"}}`,
			queue.PaymentFailed, 4500},
		{"charge.refunded",
			`{"id":"ch_1","object":"charge","amount":4500,"amount_refunded":4500,"currency":"eur","metadata":{"booking_id":"b-1"}}`,
			queue.PaymentChargeRefunded, 4500},
	}
	for _, tc := range cases {
		t.Run(tc.typ, func(t *testing.T) {
			payload := eventJSON("evt_"+tc.kind, tc.typ, tc.object)
			ev, err := NewStripeWebhook(secret).Parse([]byte(payload), sign(payload, time.Now()))
			require.NoError(t, err)
			assert.Equal(t, tc.kind, ev.Kind)
			assert.Equal(t, "b-1", ev.BookingID)
			assert.Equal(t, tc.amount, ev.Amount)
		})
	}
}

func TestParseRejectsBadSignature(t *testing.T) {
	payload := eventJSON("evt_1", "checkout.session.completed", `{"metadata":{"booking_id":"b-1"}}`)
	_, err := NewStripeWebhook("whsec_other").Parse([]byte(payload), sign(payload, time.Now()))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = NewStripeWebhook(secret).Parse([]byte(payload), sign(payload, time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, err, ErrInvalidSignature, "stale timestamp")

	_, err = NewStripeWebhook(secret).Parse([]byte(payload), "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseUnhandledAndIncomplete(t *testing.T) {
	payload := eventJSON("evt_2", "invoice.paid", `{"id":"in_1","object":"invoice"}`)
	_, err := NewStripeWebhook(secret).Parse([]byte(payload), sign(payload, time.Now()))
	assert.ErrorIs(t, err, ErrUnknownPaymentEvent)

	payload = eventJSON("evt_3", "checkout.session.completed", `{"id":"cs_1","object":"checkout.session","metadata":{}}`)
	_, err = NewStripeWebhook(secret).Parse([]byte(payload), sign(payload, time.Now()))
	assert.ErrorIs(t, err, ErrMissingBooking)
}
