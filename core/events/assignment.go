package events

import "github.com/ambufleet/dispatch/core/model"

// AssignmentCommitted is published when a proposal becomes a schedule entry.
type AssignmentCommitted struct {
	Entry   model.ScheduleEntry
	Booking model.Booking
	Forced  bool
}

// AssignmentDetached is published when a driver is detached from a booking.
type AssignmentDetached struct {
	BookingID string
	VehicleID string
	DriverID  string
}

// ConflictDetected is published when a commit attempt is blocked by
// overlapping schedule entries or staff unavailability.
type ConflictDetected struct {
	Proposal    model.AssignmentProposal
	Conflicts   []model.ScheduleEntry
	Unavailable []model.Unavailability
}
