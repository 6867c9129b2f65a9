package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ambufleet/dispatch/core/booking"
	"github.com/ambufleet/dispatch/core/model"
	"github.com/ambufleet/dispatch/core/schedule"
)

type proposeRequest struct {
	VehicleID string `json:"vehicle_id" validate:"required"`
	BookingID string `json:"booking_id" validate:"required"`
}

type proposalPayload struct {
	ID             string    `json:"id"`
	VehicleID      string    `json:"vehicle_id" validate:"required"`
	BookingID      string    `json:"booking_id" validate:"required"`
	DriverID       string    `json:"driver_id" validate:"required"`
	Window         windowDTO `json:"window" validate:"required"`
	BookingVersion int64     `json:"booking_version"`
	CreatedAt      time.Time `json:"created_at"`
}

type windowDTO struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required"`
}

type driverRequest struct {
	DriverID string `json:"driver_id" validate:"required"`
}

type completeMissionRequest struct {
	Notes string `json:"notes"`
}

type updateBookingRequest struct {
	Status           *model.BookingStatus `json:"status"`
	Notes            *string              `json:"notes"`
	EstimatedArrival *time.Time           `json:"estimated_arrival"`
	PatientPhone     *string              `json:"patient_phone"`
}

func (p proposalPayload) toModel() model.AssignmentProposal {
	return model.AssignmentProposal{
		ID:             p.ID,
		VehicleID:      p.VehicleID,
		BookingID:      p.BookingID,
		DriverID:       p.DriverID,
		Window:         model.TimeWindow{Start: p.Window.Start, End: p.Window.End},
		BookingVersion: p.BookingVersion,
		CreatedAt:      p.CreatedAt,
	}
}

// decode unmarshals and validates a request body.
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := s.validate.Struct(dst); err != nil {
		return fmt.Errorf("validate body: %w", err)
	}
	return nil
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad_request", "message": err.Error()})
}

func (s *Server) listVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := s.vehicles.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	type vehicleView struct {
		model.Vehicle
		Ready bool `json:"ready"`
	}
	out := make([]vehicleView, 0, len(vehicles))
	for _, v := range vehicles {
		out = append(out, vehicleView{Vehicle: v, Ready: v.IsReady()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("from") != "" || q.Get("to") != "" {
		from, err := time.Parse(time.RFC3339, q.Get("from"))
		if err != nil {
			badRequest(w, fmt.Errorf("parse from: %w", err))
			return
		}
		to, err := time.Parse(time.RFC3339, q.Get("to"))
		if err != nil {
			badRequest(w, fmt.Errorf("parse to: %w", err))
			return
		}
		bookings, err := s.bookings.ListRange(r.Context(), from, to)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bookings)
		return
	}
	bookings, err := s.bookings.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	date := time.Now()
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			badRequest(w, fmt.Errorf("parse date: %w", err))
			return
		}
		date = parsed
	}
	entries, err := s.schedules.ListDay(r.Context(), date)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []model.ScheduleEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) findConflicts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("vehicle_id") == "" {
		badRequest(w, fmt.Errorf("vehicle_id is required"))
		return
	}
	start, err := time.Parse(time.RFC3339, q.Get("start_time"))
	if err != nil {
		badRequest(w, fmt.Errorf("parse start_time: %w", err))
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end_time"))
	if err != nil {
		badRequest(w, fmt.Errorf("parse end_time: %w", err))
		return
	}
	res, err := s.detector.FindConflicts(r.Context(), schedule.Request{
		VehicleID:        q.Get("vehicle_id"),
		DriverID:         q.Get("driver_id"),
		Window:           model.TimeWindow{Start: start, End: end},
		ExcludeBookingID: q.Get("exclude_booking_id"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) proposeAssignment(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := s.decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	p, err := s.coordinator.ProposeAssignment(r.Context(), req.VehicleID, req.BookingID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"proposal": p, "duration": p.Duration()})
}

func (s *Server) checkAssignment(w http.ResponseWriter, r *http.Request) {
	var req proposalPayload
	if err := s.decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	res, err := s.coordinator.CheckAvailability(r.Context(), req.toModel())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) commitAssignment(w http.ResponseWriter, r *http.Request) {
	var req proposalPayload
	if err := s.decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	force := r.URL.Query().Get("force") == "true"
	entry, err := s.coordinator.CommitAssignment(r.Context(), req.toModel(), force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) detachDriver(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.coordinator.DetachDriver(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	s.respondBooking(w, r, id)
}

func (s *Server) acceptAssignment(w http.ResponseWriter, r *http.Request) {
	var req driverRequest
	if err := s.decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.coordinator.AcceptAssignment(r.Context(), id, req.DriverID); err != nil {
		writeError(w, err)
		return
	}
	s.respondBooking(w, r, id)
}

func (s *Server) rejectAssignment(w http.ResponseWriter, r *http.Request) {
	var req driverRequest
	if err := s.decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.coordinator.RejectAssignment(r.Context(), id, req.DriverID); err != nil {
		writeError(w, err)
		return
	}
	s.respondBooking(w, r, id)
}

func (s *Server) markArrived(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.coordinator.MarkArrived(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	s.respondBooking(w, r, id)
}

func (s *Server) startTransport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.coordinator.StartTransport(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	s.respondBooking(w, r, id)
}

func (s *Server) completeTransport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.coordinator.CompleteTransport(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	s.respondBooking(w, r, id)
}

func (s *Server) completeMission(w http.ResponseWriter, r *http.Request) {
	var req completeMissionRequest
	if r.ContentLength > 0 {
		if err := s.decode(r, &req); err != nil {
			badRequest(w, err)
			return
		}
	}
	id := mux.Vars(r)["id"]
	if err := s.tracker.CompleteMission(r.Context(), id, req.Notes); err != nil {
		writeError(w, err)
		return
	}
	v, err := s.vehicles.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// updateBooking mutates the editable booking fields. A status change goes
// through the state machine; anything the machine forbids is rejected.
func (s *Server) updateBooking(w http.ResponseWriter, r *http.Request) {
	var req updateBookingRequest
	if err := s.decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	id := mux.Vars(r)["id"]
	b, err := s.bookings.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Notes != nil {
		b.Notes = *req.Notes
	}
	if req.PatientPhone != nil {
		b.PatientPhone = *req.PatientPhone
	}
	if req.EstimatedArrival != nil {
		b.EstimatedArrival = req.EstimatedArrival
	}
	if req.Status != nil && *req.Status != b.Status {
		if err := booking.Transition(&b, *req.Status, time.Now()); err != nil {
			writeError(w, err)
			return
		}
	}
	updated, err := s.bookings.Update(r.Context(), b)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) respondBooking(w http.ResponseWriter, r *http.Request, id string) {
	b, err := s.bookings.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
