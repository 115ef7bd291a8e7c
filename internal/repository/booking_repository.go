package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/trainer-booking/internal/model"
)

// BookingRepo provides data access to the bookings and training_sessions
// tables.  Writes that touch a trainer's calendar are expected to run
// inside a transaction that has locked the trainer row with
// LockTrainerTx.  All timestamps are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// BookingFilter narrows List.  Zero values are ignored.  From and To
// bound scheduled_at as [From, To).
type BookingFilter struct {
	StudioID  string
	TrainerID string
	ClientID  string
	Status    model.BookingStatus
	From      *time.Time
	To        *time.Time
	Limit     int
}

const bookingColumns = `id, studio_id, trainer_id, client_id, service_id, scheduled_at,
	duration_minutes, status, hold_expiry, session_id, COALESCE(notes, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(s rowScanner) (*model.Booking, error) {
	var (
		b                            model.Booking
		clientID, serviceID, session sql.NullString
		holdExpiry                   sql.NullTime
	)
	if err := s.Scan(&b.ID, &b.StudioID, &b.TrainerID, &clientID, &serviceID, &b.ScheduledAt,
		&b.DurationMinutes, &b.Status, &holdExpiry, &session, &b.Notes, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.ClientID = nullString(clientID)
	b.ServiceID = nullString(serviceID)
	b.SessionID = nullString(session)
	if holdExpiry.Valid {
		t := holdExpiry.Time.UTC()
		b.HoldExpiry = &t
	}
	b.ScheduledAt = b.ScheduledAt.UTC()
	return &b, nil
}

func scanBookings(rows *sql.Rows) ([]model.Booking, error) {
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func strPtr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// LockTrainerTx takes a row lock on the trainer for the rest of tx.
// Concurrent calendar writers for the same trainer queue on this lock,
// which turns the check-then-insert sequence into a serialised critical
// section.  ErrNotFound is returned when the trainer does not belong to
// the studio.
func (r *BookingRepo) LockTrainerTx(ctx context.Context, tx *sql.Tx, studioID, trainerID string) error {
	var id string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM trainers WHERE id = ? AND studio_id = ? FOR UPDATE`,
		trainerID, studioID).Scan(&id)
	return mapReadErr(err)
}

// ExpireHoldsTx cancels every soft hold of the trainer whose hold_expiry
// is at or before now and returns the number of rows swept.
func (r *BookingRepo) ExpireHoldsTx(ctx context.Context, tx *sql.Tx, trainerID string, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = 'cancelled', hold_expiry = NULL
		 WHERE trainer_id = ? AND status = 'soft_hold' AND hold_expiry <= ?`,
		trainerID, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SweepExpiredHolds cancels expired soft holds of one studio, or of all
// studios when studioID is empty.
func (r *BookingRepo) SweepExpiredHolds(ctx context.Context, studioID string, now time.Time) (int64, error) {
	q := `UPDATE bookings SET status = 'cancelled', hold_expiry = NULL
	      WHERE status = 'soft_hold' AND hold_expiry <= ?`
	args := []any{now.UTC()}
	if studioID != "" {
		q += ` AND studio_id = ?`
		args = append(args, studioID)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ActiveInWindowTx lists the trainer's calendar-occupying bookings whose
// start lies in [from, to).
func (r *BookingRepo) ActiveInWindowTx(ctx context.Context, tx *sql.Tx, trainerID string, from, to time.Time) ([]model.Booking, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE trainer_id = ? AND status IN ('soft_hold','confirmed','checked_in')
		   AND scheduled_at >= ? AND scheduled_at < ?
		 ORDER BY scheduled_at`,
		trainerID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	return scanBookings(rows)
}

// ActiveBetween is the read-only variant of ActiveInWindowTx used by the
// availability endpoints.
func (r *BookingRepo) ActiveBetween(ctx context.Context, trainerID string, from, to time.Time) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE trainer_id = ? AND status IN ('soft_hold','confirmed','checked_in')
		   AND scheduled_at >= ? AND scheduled_at < ?
		 ORDER BY scheduled_at`,
		trainerID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	return scanBookings(rows)
}

// CreateTx inserts b.  A collision with the active-start unique key is
// reported as ErrConflict.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (id, studio_id, trainer_id, client_id, service_id, scheduled_at,
		                       duration_minutes, status, hold_expiry, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.StudioID, b.TrainerID, strPtr(b.ClientID), strPtr(b.ServiceID), b.ScheduledAt.UTC(),
		b.DurationMinutes, string(b.Status), nullTime(b.HoldExpiry), b.Notes)
	return mapWriteErr(err)
}

// SaveTx writes back every mutable column of b.
func (r *BookingRepo) SaveTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET client_id = ?, service_id = ?, scheduled_at = ?, duration_minutes = ?,
		        status = ?, hold_expiry = ?, session_id = ?, notes = ?
		 WHERE id = ?`,
		strPtr(b.ClientID), strPtr(b.ServiceID), b.ScheduledAt.UTC(), b.DurationMinutes,
		string(b.Status), nullTime(b.HoldExpiry), strPtr(b.SessionID), b.Notes, b.ID)
	if err != nil {
		return mapWriteErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetForUpdateTx loads a booking and locks its row.  An empty studioID
// skips the tenant filter; it is used by internal event consumers.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, studioID, id string) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	args := []any{id}
	if studioID != "" {
		q += ` AND studio_id = ?`
		args = append(args, studioID)
	}
	b, err := scanBooking(tx.QueryRowContext(ctx, q+` FOR UPDATE`, args...))
	if err != nil {
		return nil, mapReadErr(err)
	}
	return b, nil
}

// Get loads a booking without locking.
func (r *BookingRepo) Get(ctx context.Context, studioID, id string) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	args := []any{id}
	if studioID != "" {
		q += ` AND studio_id = ?`
		args = append(args, studioID)
	}
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return nil, mapReadErr(err)
	}
	return b, nil
}

// List returns bookings matching f ordered by start time.
func (r *BookingRepo) List(ctx context.Context, f BookingFilter) ([]model.Booking, error) {
	where := []string{}
	args := []any{}
	if f.StudioID != "" {
		where = append(where, "studio_id = ?")
		args = append(args, f.StudioID)
	}
	if f.TrainerID != "" {
		where = append(where, "trainer_id = ?")
		args = append(args, f.TrainerID)
	}
	if f.ClientID != "" {
		where = append(where, "client_id = ?")
		args = append(args, f.ClientID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.From != nil {
		where = append(where, "scheduled_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		where = append(where, "scheduled_at < ?")
		args = append(args, f.To.UTC())
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE `+cond+` ORDER BY scheduled_at LIMIT ?`,
		args...)
	if err != nil {
		return nil, err
	}
	return scanBookings(rows)
}

// DeleteTx removes the booking row.  Training sessions cascade.
func (r *BookingRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSessionTx records the training session of a completed booking.
func (r *BookingRepo) CreateSessionTx(ctx context.Context, tx *sql.Tx, s *model.TrainingSession) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO training_sessions (id, booking_id, trainer_id, client_id, completed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.BookingID, s.TrainerID, strPtr(s.ClientID), s.CompletedAt.UTC())
	return mapWriteErr(err)
}
