package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/trainer-booking/internal/model"
)

type enqueued struct {
	task *asynq.Task
	opts []asynq.Option
}

type fakeClient struct {
	calls []enqueued
	err   error
}

func (f *fakeClient) EnqueueContext(_ context.Context, t *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.calls = append(f.calls, enqueued{t, opts})
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "id", Type: t.Type()}, nil
}

func TestParseHours(t *testing.T) {
	got, err := ParseHours(" 24, 2 ,")
	require.NoError(t, err)
	assert.Equal(t, []int{24, 2}, got)

	got, err = ParseHours("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ParseHours("24,soon")
	assert.Error(t, err)
	_, err = ParseHours("-1")
	assert.Error(t, err)
}

func TestNewReminderTask(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	task, opts, err := NewReminderTask(ReminderPayload{BookingID: "b1", ScheduledAt: start, HoursBefore: 2})
	require.NoError(t, err)
	assert.Equal(t, TypeReminder, task.Type())

	var p ReminderPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, "b1", p.BookingID)
	assert.True(t, p.ScheduledAt.Equal(start))

	var id string
	var at time.Time
	for _, o := range opts {
		switch o.Type() {
		case asynq.TaskIDOpt:
			id = o.Value().(string)
		case asynq.ProcessAtOpt:
			at = o.Value().(time.Time)
		}
	}
	assert.Equal(t, "reminder:b1:2:1772445600", id)
	assert.True(t, at.Equal(start.Add(-2*time.Hour)))
}

func TestScheduleRemindersSkipsPast(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &fakeClient{}
	s := NewReminderScheduler(c, []int{24, 2}, nil, func() time.Time { return now })

	// 24h before is already behind us
	b := model.Booking{ID: "b1", ScheduledAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	require.NoError(t, s.ScheduleReminders(context.Background(), b))
	require.Len(t, c.calls, 1)
	var p ReminderPayload
	require.NoError(t, json.Unmarshal(c.calls[0].task.Payload(), &p))
	assert.Equal(t, 2, p.HoursBefore)
}

func TestScheduleRemindersToleratesDuplicates(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c := &fakeClient{err: asynq.ErrTaskIDConflict}
	s := NewReminderScheduler(c, []int{24, 2}, nil, func() time.Time { return now })

	b := model.Booking{ID: "b1", ScheduledAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	require.NoError(t, s.ScheduleReminders(context.Background(), b))
	assert.Len(t, c.calls, 2)

	c.err = errors.New("redis down")
	assert.Error(t, s.ScheduleReminders(context.Background(), b))
}

type fakeReminder struct {
	id    string
	at    time.Time
	hours int
}

func (f *fakeReminder) Remind(_ context.Context, id string, at time.Time, hours int) error {
	f.id, f.at, f.hours = id, at, hours
	return nil
}

func TestHandleReminder(t *testing.T) {
	r := &fakeReminder{}
	h := HandleReminder(r, zap.NewNop())
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	task, _, err := NewReminderTask(ReminderPayload{BookingID: "b1", ScheduledAt: start, HoursBefore: 24})
	require.NoError(t, err)

	require.NoError(t, h.ProcessTask(context.Background(), task))
	assert.Equal(t, "b1", r.id)
	assert.True(t, r.at.Equal(start))
	assert.Equal(t, 24, r.hours)

	err = h.ProcessTask(context.Background(), asynq.NewTask(TypeReminder, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	err = h.ProcessTask(context.Background(), asynq.NewTask(TypeReminder, []byte("{}")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type counter struct {
	n   int64
	err error
}

func (c *counter) SweepExpiredHolds(context.Context) (int64, error) { return c.n, c.err }
func (c *counter) ExpirePackages(context.Context) (int64, error)    { return c.n, c.err }

func TestHandleSweep(t *testing.T) {
	holds, pkgs := &counter{n: 2}, &counter{n: 1}
	require.NoError(t, HandleSweep(holds, pkgs, zap.NewNop()).ProcessTask(context.Background(), asynq.NewTask(TypeHoldSweep, nil)))
	require.NoError(t, HandleSweep(holds, nil, zap.NewNop()).ProcessTask(context.Background(), asynq.NewTask(TypeHoldSweep, nil)))

	holds.err = errors.New("db gone")
	assert.Error(t, HandleSweep(holds, pkgs, zap.NewNop()).ProcessTask(context.Background(), asynq.NewTask(TypeHoldSweep, nil)))
}
