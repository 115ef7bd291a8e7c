package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Reminder emits the reminder of one booking.
type Reminder interface {
	Remind(ctx context.Context, bookingID string, scheduledAt time.Time, hoursBefore int) error
}

// HoldSweeper cancels expired soft holds.
type HoldSweeper interface {
	SweepExpiredHolds(ctx context.Context) (int64, error)
}

// PackageExpirer marks packages whose expiry has passed.
type PackageExpirer interface {
	ExpirePackages(ctx context.Context) (int64, error)
}

// HandleReminder processes TypeReminder tasks.  A malformed payload is
// not retried.
func HandleReminder(r Reminder, log *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p ReminderPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			log.Error("bad reminder payload", zap.Error(err))
			return fmt.Errorf("decode reminder: %v: %w", err, asynq.SkipRetry)
		}
		if p.BookingID == "" {
			return fmt.Errorf("reminder without booking id: %w", asynq.SkipRetry)
		}
		return r.Remind(ctx, p.BookingID, p.ScheduledAt, p.HoursBefore)
	}
}

// HandleSweep processes TypeHoldSweep tasks.  pkgs may be nil.
func HandleSweep(holds HoldSweeper, pkgs PackageExpirer, log *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		n, err := holds.SweepExpiredHolds(ctx)
		if err != nil {
			return fmt.Errorf("sweep holds: %w", err)
		}
		var expired int64
		if pkgs != nil {
			if expired, err = pkgs.ExpirePackages(ctx); err != nil {
				return fmt.Errorf("expire packages: %w", err)
			}
		}
		if n > 0 || expired > 0 {
			log.Info("sweep done", zap.Int64("holds_cancelled", n), zap.Int64("packages_expired", expired))
		}
		return nil
	}
}

// NewMux routes every task type to its handler.
func NewMux(r Reminder, holds HoldSweeper, pkgs PackageExpirer, log *zap.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeReminder, HandleReminder(r, log))
	mux.HandleFunc(TypeHoldSweep, HandleSweep(holds, pkgs, log))
	return mux
}

// Worker owns the asynq server processing tasks and the scheduler that
// enqueues the periodic sweep.
type Worker struct {
	srv   *asynq.Server
	sched *asynq.Scheduler
	every time.Duration
	log   *zap.Logger
}

// NewWorker prepares a worker on redis.  A zero sweepEvery disables the
// periodic sweep.
func NewWorker(redis asynq.RedisConnOpt, concurrency int, sweepEvery time.Duration, log *zap.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 5
	}
	sugar := log.Named("asynq").Sugar()
	w := &Worker{
		srv: asynq.NewServer(redis, asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{"default": 1},
			Logger:      sugar,
			LogLevel:    asynq.WarnLevel,
			ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, t *asynq.Task, err error) {
				log.Warn("task failed", zap.String("type", t.Type()), zap.Error(err))
			}),
		}),
		every: sweepEvery,
		log:   log,
	}
	if sweepEvery > 0 {
		w.sched = asynq.NewScheduler(redis, &asynq.SchedulerOpts{Logger: sugar, LogLevel: asynq.WarnLevel})
	}
	return w
}

// Start begins processing with mux and registers the periodic sweep.
func (w *Worker) Start(mux *asynq.ServeMux) error {
	if err := w.srv.Start(mux); err != nil {
		return fmt.Errorf("start task server: %w", err)
	}
	if w.sched == nil {
		return nil
	}
	spec := "@every " + w.every.String()
	// the sweep is cheap to skip; one pending copy is enough
	if _, err := w.sched.Register(spec, asynq.NewTask(TypeHoldSweep, nil), asynq.Unique(w.every), asynq.MaxRetry(0)); err != nil {
		w.srv.Shutdown()
		return fmt.Errorf("register sweep: %w", err)
	}
	if err := w.sched.Start(); err != nil {
		w.srv.Shutdown()
		return fmt.Errorf("start scheduler: %w", err)
	}
	w.log.Info("task worker started", zap.String("sweep", spec))
	return nil
}

// Shutdown stops the scheduler and waits for running tasks.
func (w *Worker) Shutdown() {
	if w.sched != nil {
		w.sched.Shutdown()
	}
	w.srv.Shutdown()
}
