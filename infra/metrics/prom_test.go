package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/ambufleet/dispatch/core/metrics"
	"github.com/ambufleet/dispatch/core/model"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	err = sink.RecordAssignment(coremetrics.AssignmentEvent{
		Entry:  model.ScheduleEntry{VehicleID: "v1"},
		Forced: true,
	})
	if err != nil {
		t.Fatalf("record assignment: %v", err)
	}
	if got := testutil.ToFloat64(sink.assignments.WithLabelValues("v1", "true")); got != 1 {
		t.Fatalf("assignments = %v", got)
	}

	if err := sink.RecordConflictCheck(coremetrics.ConflictCheckEvent{VehicleID: "v1", Conflicts: 2}); err != nil {
		t.Fatalf("record check: %v", err)
	}
	if got := testutil.ToFloat64(sink.checks.WithLabelValues("v1", "true")); got != 1 {
		t.Fatalf("checks = %v", got)
	}

	if err := sink.RecordPoll(coremetrics.PollEvent{Vehicles: 3, Bookings: 5, Schedules: 2, Duration: time.Millisecond}); err != nil {
		t.Fatalf("record poll: %v", err)
	}
	if got := testutil.ToFloat64(sink.polls.WithLabelValues("ok")); got != 1 {
		t.Fatalf("polls = %v", got)
	}
	if got := testutil.ToFloat64(sink.pollSize.WithLabelValues("bookings")); got != 5 {
		t.Fatalf("snapshot gauge = %v", got)
	}

	// A failed poll counts against the error outcome and leaves the gauges.
	if err := sink.RecordPoll(coremetrics.PollEvent{Error: "backend down"}); err != nil {
		t.Fatalf("record failed poll: %v", err)
	}
	if got := testutil.ToFloat64(sink.polls.WithLabelValues("error")); got != 1 {
		t.Fatalf("error polls = %v", got)
	}
	if got := testutil.ToFloat64(sink.pollSize.WithLabelValues("bookings")); got != 5 {
		t.Fatalf("gauge reset on failed poll: %v", got)
	}
}

func TestPromSinkDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("second registration should be tolerated: %v", err)
	}
}
