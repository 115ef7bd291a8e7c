package repository

import (
	"context"
	"database/sql"
)

// PaymentEventRepo records inbound payment events so that redelivered
// webhooks and queue messages are applied at most once.
type PaymentEventRepo struct {
	db *sql.DB
}

// NewPaymentEventRepo returns a new PaymentEventRepo bound to the given database.
func NewPaymentEventRepo(db *sql.DB) *PaymentEventRepo { return &PaymentEventRepo{db: db} }

// Begin registers eventID and reports whether it still has to be
// processed.  An event that was seen before but never marked processed
// (its handler failed) is handed out again.
func (r *PaymentEventRepo) Begin(ctx context.Context, eventID, kind, bookingID string) (bool, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT IGNORE INTO payment_events (event_id, kind, booking_id) VALUES (?, ?, ?)`,
		eventID, kind, bookingID); err != nil {
		return false, err
	}
	var processed sql.NullTime
	if err := r.db.QueryRowContext(ctx,
		`SELECT processed_at FROM payment_events WHERE event_id = ?`, eventID).Scan(&processed); err != nil {
		return false, mapReadErr(err)
	}
	return !processed.Valid, nil
}

// MarkProcessed stamps the event as applied.
func (r *PaymentEventRepo) MarkProcessed(ctx context.Context, eventID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE payment_events SET processed_at = UTC_TIMESTAMP() WHERE event_id = ?`, eventID)
	return err
}
