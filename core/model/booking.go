package model

import "time"

// BookingStatus tracks a booking through its lifecycle.
type BookingStatus string

const (
	StatusPending      BookingStatus = "pending"
	StatusConfirmed    BookingStatus = "confirmed"
	StatusAssigned     BookingStatus = "assigned"
	StatusEnRoute      BookingStatus = "en_route"
	StatusOnSite       BookingStatus = "on_site"
	StatusTransporting BookingStatus = "transporting"
	StatusCompleted    BookingStatus = "completed"
	StatusCancelled    BookingStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Assignable reports whether a booking in this status may receive a vehicle.
// This is also the drop-target rule for the dispatch board.
func (s BookingStatus) Assignable() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Mobility classifies how the patient travels.
type Mobility string

const (
	MobilityWalking    Mobility = "walking"
	MobilityWheelchair Mobility = "wheelchair"
	MobilityStretcher  Mobility = "stretcher"
)

// Location is an address with an optional geographic fix.
type Location struct {
	Address string   `json:"address"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// Booking is a transport request for a patient.
//
// Invariant: AssignedDriverID non-empty implies Status is not pending.
type Booking struct {
	ID           string   `json:"id"`
	PatientName  string   `json:"patient_name"`
	PatientPhone string   `json:"patient_phone,omitempty"`
	Pickup       Location `json:"pickup"`
	Destination  Location `json:"destination"`
	// RequestedStart is the requested pickup instant (bookingDate+bookingTime).
	RequestedStart time.Time `json:"requested_start"`
	// EstimatedArrival, when set, bounds the transport window. It may land on
	// a later calendar day than RequestedStart.
	EstimatedArrival  *time.Time    `json:"estimated_arrival,omitempty"`
	Status            BookingStatus `json:"status"`
	AssignedVehicleID string        `json:"assigned_vehicle_id,omitempty"`
	AssignedDriverID  string        `json:"assigned_driver_id,omitempty"`
	Mobility          Mobility      `json:"mobility,omitempty"`
	Notes             string        `json:"notes,omitempty"`
	// Version is bumped by the store on every write. Assignment proposals
	// capture it so a commit can detect that the booking changed underneath.
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Assigned reports whether the booking currently has a driver attached.
func (b Booking) Assigned() bool {
	return b.AssignedDriverID != ""
}
