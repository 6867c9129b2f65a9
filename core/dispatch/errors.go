package dispatch

import (
	"errors"
	"fmt"

	"github.com/ambufleet/dispatch/core/model"
)

// ErrNoDriverOnVehicle is returned when the target vehicle has no rostered
// driver.
var ErrNoDriverOnVehicle = errors.New("dispatch: no driver on vehicle")

// BookingNotAssignableError reports a booking whose status rules out the
// attempted operation.
type BookingNotAssignableError struct {
	BookingID string
	Status    model.BookingStatus
}

func (e *BookingNotAssignableError) Error() string {
	return fmt.Sprintf("dispatch: booking %s is not assignable in status %s", e.BookingID, e.Status)
}

// ScheduleConflictError is returned by a non-forced commit that found
// overlapping entries or an unavailable driver. The caller may re-invoke the
// commit with force after explicit confirmation.
type ScheduleConflictError struct {
	Conflicts   []model.ScheduleEntry
	Unavailable []model.Unavailability
}

func (e *ScheduleConflictError) Error() string {
	return fmt.Sprintf("dispatch: %d conflicting schedules, %d unavailability records",
		len(e.Conflicts), len(e.Unavailable))
}

// StaleProposalError reports that the booking or vehicle changed between
// propose and commit. The caller must re-propose.
type StaleProposalError struct {
	BookingID string
	Reason    string
}

func (e *StaleProposalError) Error() string {
	return fmt.Sprintf("dispatch: stale proposal for booking %s: %s", e.BookingID, e.Reason)
}

// CommitFailureError wraps a transient store error during commit. Partial
// writes have been rolled back; the operation is safe to retry.
type CommitFailureError struct {
	Stage string
	Err   error
}

func (e *CommitFailureError) Error() string {
	return fmt.Sprintf("dispatch: commit failed at %s: %v", e.Stage, e.Err)
}

func (e *CommitFailureError) Unwrap() error { return e.Err }
