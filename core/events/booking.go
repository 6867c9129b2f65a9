package events

import "github.com/ambufleet/dispatch/core/model"

// BookingStatusChanged is published on every booking state transition.
type BookingStatusChanged struct {
	BookingID string
	From      model.BookingStatus
	To        model.BookingStatus
}

// MissionCompleted is published when a vehicle's active mission is closed.
type MissionCompleted struct {
	VehicleID string
	BookingID string
	Notes     string
}
