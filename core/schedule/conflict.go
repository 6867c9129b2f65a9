package schedule

import (
	"context"
	"fmt"

	"github.com/ambufleet/dispatch/core/model"
)

// Request describes one conflict probe.
type Request struct {
	VehicleID string
	// DriverID is optional. When set, the driver's own schedule entries and
	// unavailability records are checked independently of the vehicle's.
	DriverID string
	Window   model.TimeWindow
	// ExcludeBookingID removes a booking's own entries from the probe, so a
	// reassignment does not conflict with itself.
	ExcludeBookingID string
}

// Result is the outcome of a conflict probe. Finding conflicts is a normal
// result, not an error.
type Result struct {
	HasConflict          bool                   `json:"has_conflict"`
	ConflictingSchedules []model.ScheduleEntry  `json:"conflicting_schedules"`
	StaffUnavailable     []model.Unavailability `json:"staff_unavailable"`
}

// Detector finds schedule entries and staff unavailability records that
// overlap a probed window. It is a pure read and safe for concurrent use.
type Detector struct {
	store   Store
	unavail UnavailabilitySource
}

// NewDetector creates a Detector. unavail may be nil if staff records are
// not wired in.
func NewDetector(store Store, unavail UnavailabilitySource) (*Detector, error) {
	if store == nil {
		return nil, fmt.Errorf("schedule: nil store provided to NewDetector")
	}
	return &Detector{store: store, unavail: unavail}, nil
}

// FindConflicts scans for entries on the same vehicle (and, when a driver is
// given, on the same driver) whose half-open windows overlap the request.
// Touching endpoints do not conflict. Conflicting entries are returned in
// ascending start order.
func (d *Detector) FindConflicts(ctx context.Context, req Request) (Result, error) {
	if err := req.Window.Validate(); err != nil {
		return Result{}, err
	}

	entries, err := d.store.ActiveForVehicle(ctx, req.VehicleID)
	if err != nil {
		return Result{}, fmt.Errorf("schedule: vehicle entries: %w", err)
	}
	seen := map[string]bool{}
	var conflicts []model.ScheduleEntry
	for _, e := range entries {
		if d.collides(e, req) && !seen[e.ID] {
			seen[e.ID] = true
			conflicts = append(conflicts, e)
		}
	}

	var unavailable []model.Unavailability
	if req.DriverID != "" {
		driverEntries, err := d.store.ActiveForDriver(ctx, req.DriverID)
		if err != nil {
			return Result{}, fmt.Errorf("schedule: driver entries: %w", err)
		}
		for _, e := range driverEntries {
			if d.collides(e, req) && !seen[e.ID] {
				seen[e.ID] = true
				conflicts = append(conflicts, e)
			}
		}
		if d.unavail != nil {
			recs, err := d.unavail.ForUser(ctx, req.DriverID)
			if err != nil {
				return Result{}, fmt.Errorf("schedule: unavailability: %w", err)
			}
			for _, rec := range recs {
				if len(rec.Overlapping(req.Window)) > 0 {
					unavailable = append(unavailable, rec)
				}
			}
		}
	}

	SortByStart(conflicts)
	return Result{
		HasConflict:          len(conflicts) > 0 || len(unavailable) > 0,
		ConflictingSchedules: conflicts,
		StaffUnavailable:     unavailable,
	}, nil
}

func (d *Detector) collides(e model.ScheduleEntry, req Request) bool {
	if req.ExcludeBookingID != "" && e.BookingID == req.ExcludeBookingID {
		return false
	}
	return e.Window.Overlaps(req.Window)
}
