package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	assignmentsCommitted *prometheus.CounterVec
	scheduleConflicts    prometheus.Counter
	commitLatency        prometheus.Histogram
	driversDetached      prometheus.Counter
	staleProposals       prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Counter, prometheus.Histogram, prometheus.Counter, prometheus.Counter) {
	committed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignments_committed_total",
			Help: "Number of schedule entries committed",
		},
		[]string{"forced"},
	)
	conflicts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "schedule_conflicts_total",
			Help: "Number of commits rejected due to schedule conflicts",
		},
	)
	latency := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assignment_commit_latency_seconds",
			Help:    "Latency of assignment commits from re-check to write",
			Buckets: prometheus.DefBuckets,
		},
	)
	detached := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "drivers_detached_total",
			Help: "Number of driver detachments returning bookings to pending",
		},
	)
	stale := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stale_proposals_total",
			Help: "Number of commits rejected because the proposal went stale",
		},
	)
	return committed, conflicts, latency, detached, stale
}

func init() {
	assignmentsCommitted, scheduleConflicts, commitLatency, driversDetached, staleProposals = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(assignmentsCommitted, scheduleConflicts, commitLatency, driversDetached, staleProposals)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	assignmentsCommitted, scheduleConflicts, commitLatency, driversDetached, staleProposals = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
