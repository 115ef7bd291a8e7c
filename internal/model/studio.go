package model

import "time"

// BookingModel controls who may create reservations for a studio.
type BookingModel string

const (
	// BookingModelTrainerLed studios only accept bookings made by staff.
	BookingModelTrainerLed BookingModel = "trainer_led"
	// BookingModelSelfService studios also accept public bookings.
	BookingModelSelfService BookingModel = "self_service"
)

// Default hold lengths used when a studio has no settings row.
const (
	DefaultTrainerHoldMinutes = 15
	DefaultPublicHoldMinutes  = 120
)

// StudioSettings carries the per-tenant booking policy.
type StudioSettings struct {
	StudioID           string
	BookingModel       BookingModel
	SoftHoldsEnabled   bool
	TrainerHoldMinutes int
	PublicHoldMinutes  int
	Timezone           string
	LowCreditThreshold int
	OpeningHours       []OpeningWindow
}

// DefaultStudioSettings returns the policy applied when none is stored.
func DefaultStudioSettings(studioID string) StudioSettings {
	return StudioSettings{
		StudioID:           studioID,
		BookingModel:       BookingModelSelfService,
		SoftHoldsEnabled:   true,
		TrainerHoldMinutes: DefaultTrainerHoldMinutes,
		PublicHoldMinutes:  DefaultPublicHoldMinutes,
		Timezone:           "UTC",
		LowCreditThreshold: 1,
	}
}

// Location resolves the studio timezone, falling back to UTC.
func (s StudioSettings) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// OpeningWindow is one open interval on a weekday, in minutes from local
// midnight.  CloseMinute may be 1440 for "open until midnight".
type OpeningWindow struct {
	Weekday     time.Weekday // studio_opening_hours.weekday (0 = Sunday)
	OpenMinute  int          // studio_opening_hours.open_minute
	CloseMinute int          // studio_opening_hours.close_minute
}

// Trainer is a bookable person inside a studio.
type Trainer struct {
	ID       string
	StudioID string
	Name     string
	Email    string
}

// Service defines the duration and credit cost of a session type.
type Service struct {
	ID              string `json:"id"`
	StudioID        string `json:"studio_id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	// CreditsRequired is charged on completion; zero marks a free session.
	CreditsRequired int    `json:"credits_required"`
}
