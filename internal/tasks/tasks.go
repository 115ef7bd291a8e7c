// Package tasks runs the delayed and periodic jobs of the booking core
// on asynq: reminder notifications ahead of confirmed sessions and the
// sweep that cancels expired holds and expires packages.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/iliyamo/trainer-booking/internal/model"
)

// Task types.
const (
	TypeReminder  = "booking:reminder"
	TypeHoldSweep = "holds:sweep"
)

// ReminderPayload identifies the booking and the instant it was
// scheduled for when the reminder was queued.
type ReminderPayload struct {
	BookingID   string    `json:"booking_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	HoursBefore int       `json:"hours_before"`
}

// NewReminderTask builds a reminder task firing HoursBefore hours ahead
// of ScheduledAt.
func NewReminderTask(p ReminderPayload) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, nil, err
	}
	fireAt := p.ScheduledAt.Add(-time.Duration(p.HoursBefore) * time.Hour)
	opts := []asynq.Option{
		asynq.ProcessAt(fireAt),
		asynq.TaskID(fmt.Sprintf("reminder:%s:%d:%d", p.BookingID, p.HoursBefore, p.ScheduledAt.Unix())),
		asynq.MaxRetry(5),
	}
	return asynq.NewTask(TypeReminder, b), opts, nil
}

// ParseHours parses a comma separated list of lead times in hours, such
// as "24,2".  Blank entries are skipped.
func ParseHours(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		h, err := strconv.Atoi(part)
		if err != nil || h <= 0 {
			return nil, fmt.Errorf("invalid reminder lead time %q", part)
		}
		out = append(out, h)
	}
	return out, nil
}

// Enqueuer is the part of *asynq.Client the scheduler uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ReminderScheduler queues reminder tasks for confirmed bookings.
type ReminderScheduler struct {
	client Enqueuer
	hours  []int
	log    *zap.Logger
	now    func() time.Time
}

// NewReminderScheduler returns a scheduler queuing one reminder per lead
// time in hours.
func NewReminderScheduler(client Enqueuer, hours []int, log *zap.Logger, now func() time.Time) *ReminderScheduler {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReminderScheduler{client: client, hours: hours, log: log, now: now}
}

// ScheduleReminders enqueues every reminder of b that is still in the
// future.  Reminders already queued for the same start are left alone.
func (s *ReminderScheduler) ScheduleReminders(ctx context.Context, b model.Booking) error {
	now := s.now()
	var errs []error
	for _, h := range s.hours {
		p := ReminderPayload{BookingID: b.ID, ScheduledAt: b.ScheduledAt.UTC(), HoursBefore: h}
		if !p.ScheduledAt.Add(-time.Duration(h) * time.Hour).After(now) {
			continue
		}
		task, opts, err := NewReminderTask(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		info, err := s.client.EnqueueContext(ctx, task, opts...)
		switch {
		case errors.Is(err, asynq.ErrTaskIDConflict):
			continue
		case err != nil:
			errs = append(errs, fmt.Errorf("enqueue %dh reminder: %w", h, err))
			continue
		}
		s.log.Debug("reminder queued",
			zap.String("booking_id", b.ID),
			zap.Int("hours_before", h),
			zap.Time("process_at", info.NextProcessAt))
	}
	return errors.Join(errs...)
}
