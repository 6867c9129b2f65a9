package booking

import (
	"fmt"
	"time"

	"github.com/ambufleet/dispatch/core/model"
)

// InvalidTransitionError reports a booking state change outside the
// transition table. The booking is left untouched.
type InvalidTransitionError struct {
	BookingID string
	From      model.BookingStatus
	To        model.BookingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("booking %s: invalid transition %s -> %s", e.BookingID, e.From, e.To)
}

// transitions is the allowed lifecycle graph:
// pending -> {confirmed, assigned} -> en_route -> on_site -> transporting ->
// completed, with cancellation open to every pre-transporting state. The
// backward edges to pending cover driver rejection and detachment.
var transitions = map[model.BookingStatus][]model.BookingStatus{
	model.StatusPending:      {model.StatusConfirmed, model.StatusAssigned, model.StatusCancelled},
	model.StatusConfirmed:    {model.StatusAssigned, model.StatusPending, model.StatusCancelled},
	model.StatusAssigned:     {model.StatusEnRoute, model.StatusPending, model.StatusCancelled},
	model.StatusEnRoute:      {model.StatusOnSite, model.StatusCancelled},
	model.StatusOnSite:       {model.StatusTransporting, model.StatusCancelled},
	model.StatusTransporting: {model.StatusCompleted},
	model.StatusCompleted:    {},
	model.StatusCancelled:    {},
}

// CanTransition reports whether from -> to is an allowed lifecycle edge.
func CanTransition(from, to model.BookingStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition applies the state change to the booking in place, or returns
// an InvalidTransitionError leaving the booking unchanged.
func Transition(b *model.Booking, to model.BookingStatus, now time.Time) error {
	if !CanTransition(b.Status, to) {
		return &InvalidTransitionError{BookingID: b.ID, From: b.Status, To: to}
	}
	b.Status = to
	b.UpdatedAt = now
	return nil
}
