package booking

import "github.com/iliyamo/trainer-booking/internal/model"

// transitions lists the explicit lifecycle moves.  Cancellation of a
// completed booking is allowed because it drives the refund path.
var transitions = map[model.BookingStatus][]model.BookingStatus{
	model.StatusSoftHold:  {model.StatusConfirmed, model.StatusCancelled},
	model.StatusConfirmed: {model.StatusCheckedIn, model.StatusCompleted, model.StatusCancelled},
	model.StatusCheckedIn: {model.StatusCompleted, model.StatusCancelled},
	model.StatusCompleted: {model.StatusCancelled},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to model.BookingStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTransition returns an INVALID_STATE error when from -> to is not
// allowed.
func CheckTransition(from, to model.BookingStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return InvalidState("cannot move booking from %s to %s", from, to)
}

// InitialStatus resolves the status a new booking starts in.  An empty
// request defaults to soft_hold for public bookings and confirmed for
// staff bookings; a soft hold becomes confirmed when the studio has
// disabled holds.
func InitialStatus(requested model.BookingStatus, public, holdsEnabled bool) (model.BookingStatus, error) {
	switch requested {
	case "":
		requested = model.StatusConfirmed
		if public {
			requested = model.StatusSoftHold
		}
	case model.StatusSoftHold, model.StatusConfirmed:
	default:
		return "", Validation("status must be soft_hold or confirmed, got %q", requested)
	}
	if requested == model.StatusSoftHold && !holdsEnabled {
		return model.StatusConfirmed, nil
	}
	return requested, nil
}

// HoldMinutes picks the hold length for the booking origin.
func HoldMinutes(s model.StudioSettings, public bool) int {
	m := s.TrainerHoldMinutes
	def := model.DefaultTrainerHoldMinutes
	if public {
		m = s.PublicHoldMinutes
		def = model.DefaultPublicHoldMinutes
	}
	if m <= 0 {
		return def
	}
	return m
}
