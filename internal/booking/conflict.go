package booking

import (
	"time"

	"github.com/iliyamo/trainer-booking/internal/model"
)

// MaxDurationMinutes caps a single booking at one day.  It also bounds
// how far back the conflict scan has to look.
const MaxDurationMinutes = 24 * 60

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds the interval of a booking starting at start.
func NewInterval(start time.Time, durationMinutes int) Interval {
	return Interval{Start: start, End: start.Add(time.Duration(durationMinutes) * time.Minute)}
}

// Overlaps is the half-open overlap test.  Touching endpoints do not
// overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

// ScanWindow returns the range of scheduled_at values that can hold a
// booking overlapping the candidate.  Any booking starting earlier than
// MaxDurationMinutes before the candidate has ended by then.
func ScanWindow(candidate Interval) (from, to time.Time) {
	lookback := time.Duration(MaxDurationMinutes) * time.Minute
	if d := candidate.End.Sub(candidate.Start); d > lookback {
		lookback = d
	}
	return candidate.Start.Add(-lookback), candidate.End
}

// FindConflict returns the first existing booking that is active at now
// and overlaps the candidate, or nil.  Expired soft holds and the
// booking named by excludeID are ignored.
func FindConflict(candidate Interval, existing []model.Booking, excludeID string, now time.Time) *model.Booking {
	for i := range existing {
		b := existing[i]
		if b.ID == excludeID || !b.Status.Active() || b.HoldExpired(now) {
			continue
		}
		if candidate.Overlaps(NewInterval(b.ScheduledAt, b.DurationMinutes)) {
			return &existing[i]
		}
	}
	return nil
}
