package model

import "time"

// AssignmentProposal is an uncommitted candidate assignment under user
// consideration. It lives for one interaction: discarded on cancel, turned
// into a ScheduleEntry plus a booking transition on commit.
type AssignmentProposal struct {
	ID        string     `json:"id"`
	VehicleID string     `json:"vehicle_id"`
	BookingID string     `json:"booking_id"`
	DriverID  string     `json:"driver_id"`
	Window    TimeWindow `json:"window"`
	// BookingVersion pins the booking revision the proposal was derived
	// from; a commit against a newer revision is stale.
	BookingVersion int64     `json:"booking_version"`
	CreatedAt      time.Time `json:"created_at"`
}

// Duration describes the proposed transport span for display, in days and
// hours for multi-day windows.
func (p AssignmentProposal) Duration() string {
	return p.Window.HumanDuration()
}
