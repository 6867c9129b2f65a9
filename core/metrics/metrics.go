package metrics

import (
	"time"

	"github.com/ambufleet/dispatch/core/model"
)

// AssignmentEvent describes one committed assignment for observability.
type AssignmentEvent struct {
	Entry       model.ScheduleEntry
	BookingID   string
	Forced      bool
	Latency     time.Duration
	CommittedAt time.Time
}

// Sink records committed assignments. Sinks must tolerate being called from
// the commit path and fail soft.
type Sink interface {
	RecordAssignment(ev AssignmentEvent) error
}

// ConflictCheckEvent captures one availability probe.
type ConflictCheckEvent struct {
	VehicleID   string
	DriverID    string
	Window      model.TimeWindow
	Conflicts   int
	Unavailable int
	Time        time.Time
}

// ConflictRecorder is an optional Sink extension for availability probes.
type ConflictRecorder interface {
	RecordConflictCheck(ev ConflictCheckEvent) error
}

// PollEvent captures one reconciliation cycle.
type PollEvent struct {
	Component string
	Vehicles  int
	Bookings  int
	Schedules int
	Error     string
	Duration  time.Duration
	Time      time.Time
}

// PollRecorder is an optional Sink extension for reconciliation cycles.
type PollRecorder interface {
	RecordPoll(ev PollEvent) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordAssignment(AssignmentEvent) error       { return nil }
func (NopSink) RecordConflictCheck(ConflictCheckEvent) error { return nil }
func (NopSink) RecordPoll(PollEvent) error                   { return nil }
