package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/godswillmedia-source/stylesync-pwa/internal/domain"
)

var ErrPastAppointment = errors.New("appointment time already passed")

// Reconciler is the pure policy half of booking creation: given an
// aggregate confidence, pick the target state. Side effects (the
// calendar write, counter bumps) live in the pipeline so this stays
// testable without mocks.
type Reconciler struct {
	Threshold float64
}

// Decide routes at-or-above threshold to auto-sync; the boundary is
// inclusive.
func (r Reconciler) Decide(confidence float64) string {
	if confidence >= r.Threshold {
		return domain.StatusAutoSynced
	}
	return domain.StatusNeedsReview
}

// ValidateAppointment guards edited times during approval. Only the time
// is re-validated; extraction is never re-run.
func ValidateAppointment(at, now time.Time) error {
	if at.Before(now) {
		return fmt.Errorf("%w: %s", ErrPastAppointment, at.Format(time.RFC3339))
	}
	return nil
}

// OverlapReason renders the informational annotation attached to a
// booking that shares its slot with existing ones. Overlaps never block
// or downgrade a booking; double-booking two chairs is legitimate.
func OverlapReason(overlaps []domain.Booking) string {
	if len(overlaps) == 0 {
		return ""
	}
	first := overlaps[0]
	return fmt.Sprintf("overlaps %d existing booking(s), e.g. %s at %s",
		len(overlaps), first.Service, first.AppointmentTime.Format("Jan 2 3:04 PM"))
}
