package servicetest

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/trainer-booking/internal/model"
	"github.com/iliyamo/trainer-booking/internal/queue"
)

// Clock is a settable time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock returns a clock frozen at t.
func NewClock(t time.Time) *Clock { return &Clock{t: t} }

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Emitter records emitted events.  Err, when set, is returned from every
// Emit after recording.
type Emitter struct {
	mu     sync.Mutex
	events []queue.Event
	Err    error
}

func (e *Emitter) Emit(_ context.Context, ev queue.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return e.Err
}

// Keys returns the routing keys of every recorded event in order.
func (e *Emitter) Keys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.RoutingKey()
	}
	return out
}

// Events returns the recorded events with routing key key.
func (e *Emitter) Events(key string) []queue.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []queue.Event
	for _, ev := range e.events {
		if ev.RoutingKey() == key {
			out = append(out, ev)
		}
	}
	return out
}

// Reminders records bookings passed to ScheduleReminders.
type Reminders struct {
	mu       sync.Mutex
	bookings []model.Booking
}

func (r *Reminders) ScheduleReminders(_ context.Context, b model.Booking) error {
	r.mu.Lock()
	r.bookings = append(r.bookings, b)
	r.mu.Unlock()
	return nil
}

// Scheduled returns the ids of every booking reminders were queued for.
func (r *Reminders) Scheduled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.bookings))
	for i, b := range r.bookings {
		out[i] = b.ID
	}
	return out
}
