package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/ambufleet/dispatch/core/metrics"
)

// PromSink records scheduler events in Prometheus metrics.
type PromSink struct {
	assignments *prometheus.CounterVec
	checks      *prometheus.CounterVec
	polls       *prometheus.CounterVec
	pollSize    *prometheus.GaugeVec
}

// NewPromSink registers scheduler metrics on the default Prometheus
// registerer. The Prometheus server is started separately.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_assignment_events_total",
		Help: "Total number of committed assignment events",
	}, []string{"vehicle_id", "forced"})
	checks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_conflict_checks_total",
		Help: "Total number of availability probes",
	}, []string{"vehicle_id", "conflicting"})
	polls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_poll_cycles_total",
		Help: "Total number of reconciliation poll cycles",
	}, []string{"outcome"})
	pollSize := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scheduler_snapshot_size",
		Help: "Entity counts in the last reconciled snapshot",
	}, []string{"entity"})

	for _, c := range []prometheus.Collector{assignments, checks, polls, pollSize} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return &PromSink{assignments: assignments, checks: checks, polls: polls, pollSize: pollSize}, nil
}

// RecordAssignment increments the assignment counter.
func (s *PromSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	s.assignments.WithLabelValues(ev.Entry.VehicleID, strconv.FormatBool(ev.Forced)).Inc()
	return nil
}

// RecordConflictCheck increments the probe counter.
func (s *PromSink) RecordConflictCheck(ev coremetrics.ConflictCheckEvent) error {
	conflicting := ev.Conflicts > 0 || ev.Unavailable > 0
	s.checks.WithLabelValues(ev.VehicleID, strconv.FormatBool(conflicting)).Inc()
	return nil
}

// RecordPoll counts the cycle and updates the snapshot gauges.
func (s *PromSink) RecordPoll(ev coremetrics.PollEvent) error {
	outcome := "ok"
	if ev.Error != "" {
		outcome = "error"
	}
	s.polls.WithLabelValues(outcome).Inc()
	if ev.Error == "" {
		s.pollSize.WithLabelValues("vehicles").Set(float64(ev.Vehicles))
		s.pollSize.WithLabelValues("bookings").Set(float64(ev.Bookings))
		s.pollSize.WithLabelValues("schedules").Set(float64(ev.Schedules))
	}
	return nil
}
