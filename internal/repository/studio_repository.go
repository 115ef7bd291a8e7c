package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/trainer-booking/internal/model"
)

// StudioRepo reads studio policy and the catalogue data the booking core
// consumes: trainers, services, availability rules and blocked windows.
type StudioRepo struct {
	db *sql.DB
}

// NewStudioRepo returns a new StudioRepo bound to the given database.
func NewStudioRepo(db *sql.DB) *StudioRepo { return &StudioRepo{db: db} }

// Settings loads the booking policy of a studio together with its
// opening hours.
func (r *StudioRepo) Settings(ctx context.Context, studioID string) (model.StudioSettings, error) {
	s := model.StudioSettings{StudioID: studioID}
	err := r.db.QueryRowContext(ctx,
		`SELECT booking_model, soft_holds_enabled, trainer_hold_minutes, public_hold_minutes,
		        timezone, low_credit_threshold
		 FROM studios WHERE id = ?`,
		studioID).Scan(&s.BookingModel, &s.SoftHoldsEnabled, &s.TrainerHoldMinutes,
		&s.PublicHoldMinutes, &s.Timezone, &s.LowCreditThreshold)
	if err != nil {
		return s, mapReadErr(err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT weekday, open_minute, close_minute FROM studio_opening_hours
		 WHERE studio_id = ? ORDER BY weekday, open_minute`,
		studioID)
	if err != nil {
		return s, err
	}
	defer rows.Close()
	for rows.Next() {
		var w model.OpeningWindow
		var wd int
		if err := rows.Scan(&wd, &w.OpenMinute, &w.CloseMinute); err != nil {
			return s, err
		}
		w.Weekday = time.Weekday(wd)
		s.OpeningHours = append(s.OpeningHours, w)
	}
	return s, rows.Err()
}

// Trainer loads a trainer.  An empty studioID skips the tenant filter
// (public availability is addressed by trainer id only).
func (r *StudioRepo) Trainer(ctx context.Context, studioID, trainerID string) (*model.Trainer, error) {
	q := `SELECT id, studio_id, name, email FROM trainers WHERE id = ?`
	args := []any{trainerID}
	if studioID != "" {
		q += ` AND studio_id = ?`
		args = append(args, studioID)
	}
	var t model.Trainer
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&t.ID, &t.StudioID, &t.Name, &t.Email); err != nil {
		return nil, mapReadErr(err)
	}
	return &t, nil
}

// Service loads a service of the studio.
func (r *StudioRepo) Service(ctx context.Context, studioID, serviceID string) (*model.Service, error) {
	var s model.Service
	err := r.db.QueryRowContext(ctx,
		`SELECT id, studio_id, name, duration_minutes, credits_required
		 FROM services WHERE id = ? AND studio_id = ?`,
		serviceID, studioID).Scan(&s.ID, &s.StudioID, &s.Name, &s.DurationMinutes, &s.CreditsRequired)
	if err != nil {
		return nil, mapReadErr(err)
	}
	return &s, nil
}

// AvailabilityRules lists the weekly rules and date overrides of a
// trainer.
func (r *StudioRepo) AvailabilityRules(ctx context.Context, trainerID string) ([]model.AvailabilityRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, trainer_id, weekday, specific_date, start_minute, end_minute
		 FROM availability_rules WHERE trainer_id = ?
		 ORDER BY specific_date IS NULL, specific_date, weekday, start_minute`,
		trainerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.AvailabilityRule{}
	for rows.Next() {
		var (
			ar   model.AvailabilityRule
			wd   sql.NullInt16
			date sql.NullTime
		)
		if err := rows.Scan(&ar.ID, &ar.TrainerID, &wd, &date, &ar.StartMinute, &ar.EndMinute); err != nil {
			return nil, err
		}
		if wd.Valid {
			d := time.Weekday(wd.Int16)
			ar.Weekday = &d
		}
		if date.Valid {
			d := date.Time.UTC()
			ar.Date = &d
		}
		out = append(out, ar)
	}
	return out, rows.Err()
}

// BlockedWindows lists the trainer's blocked windows that intersect
// [from, to).
func (r *StudioRepo) BlockedWindows(ctx context.Context, trainerID string, from, to time.Time) ([]model.BlockedWindow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, trainer_id, starts_at, ends_at, reason FROM blocked_windows
		 WHERE trainer_id = ? AND starts_at < ? AND ends_at > ?
		 ORDER BY starts_at`,
		trainerID, to.UTC(), from.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.BlockedWindow{}
	for rows.Next() {
		var b model.BlockedWindow
		if err := rows.Scan(&b.ID, &b.TrainerID, &b.StartsAt, &b.EndsAt, &b.Reason); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
