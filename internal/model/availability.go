package model

import "time"

// AvailabilityRule is either a recurring weekly window (Weekday set) or
// a one-off override for a single date (Date set).  Overrides for a date
// replace the weekly rules of that date.
type AvailabilityRule struct {
	ID          uint64        // availability_rules.id
	TrainerID   string        // availability_rules.trainer_id
	Weekday     *time.Weekday // availability_rules.weekday (nullable)
	Date        *time.Time    // availability_rules.specific_date (nullable)
	StartMinute int           // availability_rules.start_minute
	EndMinute   int           // availability_rules.end_minute
}

// BlockedWindow is a period in which the trainer is unavailable.
type BlockedWindow struct {
	ID        uint64
	TrainerID string
	StartsAt  time.Time
	EndsAt    time.Time
	Reason    string
}

// Window is a half-open interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
