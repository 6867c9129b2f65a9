package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ambufleet/dispatch/core/booking"
	"github.com/ambufleet/dispatch/core/dispatch"
	"github.com/ambufleet/dispatch/core/fleet"
	"github.com/ambufleet/dispatch/core/model"
	"github.com/ambufleet/dispatch/core/schedule"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps scheduler errors onto HTTP statuses with enough structure
// for the client to render a specific, actionable message.
func writeError(w http.ResponseWriter, err error) {
	var (
		notAssignable *dispatch.BookingNotAssignableError
		conflict      *dispatch.ScheduleConflictError
		stale         *dispatch.StaleProposalError
		invalidTrans  *booking.InvalidTransitionError
		commitFail    *dispatch.CommitFailureError
	)
	switch {
	case errors.Is(err, model.ErrInvalidWindow):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "invalid_window", "message": err.Error(),
		})
	case errors.Is(err, booking.ErrNotFound),
		errors.Is(err, fleet.ErrNotFound),
		errors.Is(err, schedule.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": "not_found", "message": err.Error(),
		})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":                 "schedule_conflict",
			"message":               "The window overlaps committed schedule entries. Re-submit with force to override.",
			"conflicting_schedules": conflict.Conflicts,
			"staff_unavailable":     conflict.Unavailable,
		})
	case errors.As(err, &stale):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "stale_proposal", "message": err.Error(), "booking_id": stale.BookingID,
		})
	case errors.As(err, &notAssignable):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "booking_not_assignable", "message": err.Error(),
			"booking_id": notAssignable.BookingID, "status": notAssignable.Status,
		})
	case errors.As(err, &invalidTrans):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "invalid_state_transition", "message": err.Error(),
			"booking_id": invalidTrans.BookingID,
		})
	case errors.Is(err, dispatch.ErrNoDriverOnVehicle):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": "no_driver_on_vehicle", "message": err.Error(),
		})
	case errors.As(err, &commitFail):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "commit_failed", "message": err.Error(), "retryable": true,
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "internal", "message": err.Error(),
		})
	}
}
