package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ambufleet/dispatch/core/logger"
	"github.com/ambufleet/dispatch/core/metrics"
	"github.com/ambufleet/dispatch/core/model"
)

// Source provides the authoritative vehicle, booking and schedule state the
// loop reconciles against.
type Source interface {
	Vehicles(ctx context.Context) ([]model.Vehicle, error)
	Bookings(ctx context.Context) ([]model.Booking, error)
	Schedules(ctx context.Context, date time.Time) ([]model.ScheduleEntry, error)
}

// Notifier raises the attention-getting alert for a driver's new assignment.
type Notifier interface {
	NotifyNewAssignment(ctx context.Context, b model.Booking) error
}

// Snapshot is one coherent view of the authoritative state. Snapshots are
// replaced wholesale on every successful poll; fleets are small enough that
// incremental diffing buys nothing.
type Snapshot struct {
	Vehicles  []model.Vehicle
	Bookings  []model.Booking
	Schedules []model.ScheduleEntry
	FetchedAt time.Time
}

// Loop periodically re-fetches authoritative state into a client-visible
// snapshot. Poll failures are non-fatal: the last snapshot is kept and the
// next tick retries.
type Loop struct {
	cfg      Config
	src      Source
	notifier Notifier
	sink     metrics.Sink
	log      logger.Logger

	mu   sync.RWMutex
	snap Snapshot
	// lastAssignment is the booking id last seen as the driver's current
	// assignment; the new-assignment alert fires once per id change.
	lastAssignment string
}

// NewLoop creates a Loop. notifier is only used when cfg.DriverID is set; a
// nil sink records nothing.
func NewLoop(cfg Config, src Source, notifier Notifier, sink metrics.Sink, log logger.Logger) (*Loop, error) {
	if src == nil || log == nil {
		return nil, fmt.Errorf("reconcile: nil parameter provided to NewLoop")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Loop{cfg: cfg, src: src, notifier: notifier, sink: sink, log: log}, nil
}

// Run polls immediately and then on every tick until the context is
// canceled.
func (l *Loop) Run(ctx context.Context) {
	if err := l.poll(ctx); err != nil {
		l.log.Warnf("initial poll failed, keeping empty snapshot: %v", err)
	}
	ticker := time.NewTicker(time.Duration(l.cfg.PollIntervalSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.poll(ctx); err != nil {
				l.log.Warnf("poll failed, keeping last snapshot: %v", err)
			}
		}
	}
}

// Snapshot returns a copy of the last coherent snapshot.
func (l *Loop) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Snapshot{
		Vehicles:  append([]model.Vehicle(nil), l.snap.Vehicles...),
		Bookings:  append([]model.Booking(nil), l.snap.Bookings...),
		Schedules: append([]model.ScheduleEntry(nil), l.snap.Schedules...),
		FetchedAt: l.snap.FetchedAt,
	}
}

// CurrentAssignment returns the driver's current assignment from the last
// snapshot, if any.
func (l *Loop) CurrentAssignment() (model.Booking, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return currentAssignment(l.snap.Bookings, l.cfg.DriverID)
}

func (l *Loop) poll(ctx context.Context) error {
	started := time.Now()
	vehicles, err := l.src.Vehicles(ctx)
	if err != nil {
		l.recordPoll(started, 0, 0, 0, err)
		return err
	}
	bookings, err := l.src.Bookings(ctx)
	if err != nil {
		l.recordPoll(started, len(vehicles), 0, 0, err)
		return err
	}
	schedules, err := l.src.Schedules(ctx, started)
	if err != nil {
		l.recordPoll(started, len(vehicles), len(bookings), 0, err)
		return err
	}

	l.mu.Lock()
	l.snap = Snapshot{Vehicles: vehicles, Bookings: bookings, Schedules: schedules, FetchedAt: started}
	var fresh *model.Booking
	if l.cfg.DriverID != "" {
		cur, ok := currentAssignment(bookings, l.cfg.DriverID)
		id := ""
		if ok {
			id = cur.ID
		}
		if id != "" && id != l.lastAssignment {
			fresh = &cur
		}
		l.lastAssignment = id
	}
	l.mu.Unlock()

	if fresh != nil {
		l.log.Infof("new assignment for driver %s: booking %s", l.cfg.DriverID, fresh.ID)
		if l.notifier != nil {
			if err := l.notifier.NotifyNewAssignment(ctx, *fresh); err != nil {
				l.log.Errorf("new-assignment notification: %v", err)
			}
		}
	}
	l.recordPoll(started, len(vehicles), len(bookings), len(schedules), nil)
	return nil
}

func (l *Loop) recordPoll(started time.Time, vehicles, bookings, schedules int, err error) {
	r, ok := l.sink.(metrics.PollRecorder)
	if !ok {
		return
	}
	ev := metrics.PollEvent{
		Component: "reconcile",
		Vehicles:  vehicles,
		Bookings:  bookings,
		Schedules: schedules,
		Duration:  time.Since(started),
		Time:      started,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	_ = r.RecordPoll(ev)
}

// currentAssignment picks the driver's earliest in-flight booking: assigned
// through transporting, ordered by requested start.
func currentAssignment(bookings []model.Booking, driverID string) (model.Booking, bool) {
	var best model.Booking
	found := false
	for _, b := range bookings {
		if b.AssignedDriverID != driverID {
			continue
		}
		switch b.Status {
		case model.StatusAssigned, model.StatusEnRoute, model.StatusOnSite, model.StatusTransporting:
		default:
			continue
		}
		if !found || b.RequestedStart.Before(best.RequestedStart) {
			best = b
			found = true
		}
	}
	return best, found
}
