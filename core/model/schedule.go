package model

import "time"

// ScheduleEntry is a committed (vehicle, driver, booking, window) record.
// Entries are the source of truth for conflict detection.
//
// Invariant: for a fixed vehicle or driver no two active entries overlap,
// unless one was force-committed by explicit override.
type ScheduleEntry struct {
	ID        string     `json:"id"`
	VehicleID string     `json:"vehicle_id"`
	BookingID string     `json:"booking_id"`
	DriverID  string     `json:"driver_id"`
	Window    TimeWindow `json:"window"`
	// Active is cleared when the entry is superseded by a reassignment or
	// the booking reaches a terminal state. Inactive entries are kept as an
	// audit record and no longer count toward conflicts.
	Active bool `json:"active"`
	// Forced marks an entry committed despite detected conflicts.
	Forced    bool      `json:"forced,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
