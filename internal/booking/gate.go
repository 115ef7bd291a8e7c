package booking

import (
	"time"

	"github.com/iliyamo/trainer-booking/internal/model"
)

// CheckOpeningHours rejects a candidate that does not fit entirely in
// one opening window on its local weekday.  Studios without opening
// hours accept every interval.
func CheckOpeningHours(s model.StudioSettings, candidate Interval) error {
	if len(s.OpeningHours) == 0 {
		return nil
	}
	loc := s.Location()
	start := candidate.Start.In(loc)
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	startMin := int(start.Sub(day) / time.Minute)
	endMin := int(candidate.End.In(loc).Sub(day) / time.Minute)
	for _, w := range s.OpeningHours {
		if w.Weekday != start.Weekday() {
			continue
		}
		if startMin >= w.OpenMinute && endMin <= w.CloseMinute {
			return nil
		}
	}
	return Conflict("requested time %s-%s is outside opening hours on %s",
		start.Format("15:04"), candidate.End.In(loc).Format("15:04"), start.Weekday())
}

// CheckBookingModel rejects public reservations for trainer-led studios.
func CheckBookingModel(s model.StudioSettings, public bool) error {
	if public && s.BookingModel == model.BookingModelTrainerLed {
		return Conflict("studio only accepts bookings made by its trainers")
	}
	return nil
}
