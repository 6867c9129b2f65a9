package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ambufleet/dispatch/core/booking"
	"github.com/ambufleet/dispatch/core/events"
	"github.com/ambufleet/dispatch/core/fleet"
	"github.com/ambufleet/dispatch/core/logger"
	"github.com/ambufleet/dispatch/core/metrics"
	"github.com/ambufleet/dispatch/core/model"
	"github.com/ambufleet/dispatch/core/schedule"
	"github.com/ambufleet/dispatch/internal/eventbus"
)

// TxCommitter is an optional schedule.Store extension. Stores that can write
// the schedule entry, the supersession and the booking in one transaction
// implement it; the coordinator then skips its compensating rollback path.
type TxCommitter interface {
	CommitAssignment(ctx context.Context, e model.ScheduleEntry, b model.Booking) (model.Booking, error)
}

// Coordinator orchestrates assignments: it validates the booking, locates
// the driver, probes for conflicts, and commits the schedule entry together
// with the booking transition. Commits are serialized per vehicle and per
// driver so two proposals cannot both pass the conflict check and then both
// write overlapping windows.
type Coordinator struct {
	cfg       Config
	vehicles  fleet.Store
	bookings  booking.Store
	schedules schedule.Store
	detector  *schedule.Detector
	bus       eventbus.EventBus
	sink      metrics.Sink
	log       logger.Logger
	locks     *keyedLocks
	now       func() time.Time
}

// NewCoordinator creates a Coordinator. bus may be nil; a nil sink records
// nothing.
func NewCoordinator(cfg Config, vehicles fleet.Store, bookings booking.Store, schedules schedule.Store, detector *schedule.Detector, bus eventbus.EventBus, sink metrics.Sink, log logger.Logger) (*Coordinator, error) {
	if vehicles == nil || bookings == nil || schedules == nil || detector == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewCoordinator")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Coordinator{
		cfg:       cfg,
		vehicles:  vehicles,
		bookings:  bookings,
		schedules: schedules,
		detector:  detector,
		bus:       bus,
		sink:      sink,
		log:       log,
		locks:     newKeyedLocks(),
		now:       time.Now,
	}, nil
}

// SetClock overrides the coordinator's time source, for tests.
func (c *Coordinator) SetClock(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// CanReceiveBooking reports whether the booking may be dropped onto a
// vehicle. Reassignment of an assigned booking that has not yet departed is
// allowed; after en_route it is not.
func (c *Coordinator) CanReceiveBooking(b model.Booking) bool {
	return b.Status.Assignable()
}

// ProposeAssignment builds an ephemeral assignment candidate for the booking
// on the vehicle. Nothing is committed; the proposal is discarded on cancel.
func (c *Coordinator) ProposeAssignment(ctx context.Context, vehicleID, bookingID string) (model.AssignmentProposal, error) {
	b, err := c.bookings.Get(ctx, bookingID)
	if err != nil {
		return model.AssignmentProposal{}, err
	}
	if !b.Status.Assignable() {
		return model.AssignmentProposal{}, &BookingNotAssignableError{BookingID: b.ID, Status: b.Status}
	}
	v, err := c.vehicles.Get(ctx, vehicleID)
	if err != nil {
		return model.AssignmentProposal{}, err
	}
	drv, ok := v.Driver()
	if !ok {
		return model.AssignmentProposal{}, fmt.Errorf("%w: %s", ErrNoDriverOnVehicle, vehicleID)
	}

	p := model.AssignmentProposal{
		ID:             uuid.NewString(),
		VehicleID:      v.ID,
		BookingID:      b.ID,
		DriverID:       drv.UserID,
		Window:         c.defaultWindow(b),
		BookingVersion: b.Version,
		CreatedAt:      c.now(),
	}
	c.log.Debugw("assignment proposed", map[string]any{
		"booking":  b.ID,
		"vehicle":  v.ID,
		"driver":   drv.UserID,
		"window":   p.Window,
		"duration": p.Duration(),
	})
	return p, nil
}

// defaultWindow derives the proposed transport window: the booking's
// requested start, clamped to the operational day start, until its arrival
// estimate, or the default duration capped at the end of the operational day.
func (c *Coordinator) defaultWindow(b model.Booking) model.TimeWindow {
	start := b.RequestedStart
	dayStart := time.Date(start.Year(), start.Month(), start.Day(), c.cfg.DayStartHour, 0, 0, 0, start.Location())
	if start.Before(dayStart) {
		start = dayStart
	}
	if b.EstimatedArrival != nil && b.EstimatedArrival.After(start) {
		return model.TimeWindow{Start: start, End: *b.EstimatedArrival}
	}
	end := start.Add(time.Duration(c.cfg.DefaultDurationMinutes) * time.Minute)
	dayEnd := time.Date(start.Year(), start.Month(), start.Day(), c.cfg.DayEndHour, 0, 0, 0, start.Location())
	if end.After(dayEnd) && dayEnd.After(start) {
		end = dayEnd
	}
	return model.TimeWindow{Start: start, End: end}
}

// CheckAvailability probes the proposal's window for conflicts. It has no
// side effects and may be called repeatedly while the user edits the window.
func (c *Coordinator) CheckAvailability(ctx context.Context, p model.AssignmentProposal) (schedule.Result, error) {
	res, err := c.detector.FindConflicts(ctx, schedule.Request{
		VehicleID:        p.VehicleID,
		DriverID:         p.DriverID,
		Window:           p.Window,
		ExcludeBookingID: p.BookingID,
	})
	if err != nil {
		return schedule.Result{}, err
	}
	if r, ok := c.sink.(metrics.ConflictRecorder); ok {
		_ = r.RecordConflictCheck(metrics.ConflictCheckEvent{
			VehicleID:   p.VehicleID,
			DriverID:    p.DriverID,
			Window:      p.Window,
			Conflicts:   len(res.ConflictingSchedules),
			Unavailable: len(res.StaffUnavailable),
			Time:        c.now(),
		})
	}
	return res, nil
}

// CommitAssignment re-validates the proposal under the vehicle and driver
// locks and atomically writes the schedule entry, supersedes any prior entry
// for the booking, and advances the booking. With force=false a detected
// conflict aborts with ScheduleConflictError; force=true records the entry
// anyway, marked as forced.
func (c *Coordinator) CommitAssignment(ctx context.Context, p model.AssignmentProposal, force bool) (model.ScheduleEntry, error) {
	if err := p.Window.Validate(); err != nil {
		return model.ScheduleEntry{}, err
	}
	unlock := c.locks.lock("vehicle/"+p.VehicleID, "driver/"+p.DriverID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.CommitTimeoutSeconds)*time.Second)
	defer cancel()
	started := time.Now()

	b, err := c.bookings.Get(ctx, p.BookingID)
	if err != nil {
		return model.ScheduleEntry{}, err
	}
	if b.Version != p.BookingVersion {
		staleProposals.Inc()
		return model.ScheduleEntry{}, &StaleProposalError{BookingID: b.ID, Reason: "booking changed since proposal"}
	}
	if !b.Status.Assignable() {
		return model.ScheduleEntry{}, &BookingNotAssignableError{BookingID: b.ID, Status: b.Status}
	}
	v, err := c.vehicles.Get(ctx, p.VehicleID)
	if err != nil {
		return model.ScheduleEntry{}, err
	}
	if !c.driverRostered(v, p.DriverID) {
		staleProposals.Inc()
		return model.ScheduleEntry{}, &StaleProposalError{BookingID: b.ID, Reason: "driver no longer rostered on vehicle"}
	}

	// Check-then-act happens under the locks taken above, so the re-check
	// cannot race another commit for the same vehicle or driver.
	res, err := c.detector.FindConflicts(ctx, schedule.Request{
		VehicleID:        p.VehicleID,
		DriverID:         p.DriverID,
		Window:           p.Window,
		ExcludeBookingID: p.BookingID,
	})
	if err != nil {
		return model.ScheduleEntry{}, err
	}
	if res.HasConflict && !force {
		scheduleConflicts.Inc()
		if c.bus != nil {
			c.bus.Publish(events.ConflictDetected{
				Proposal:    p,
				Conflicts:   res.ConflictingSchedules,
				Unavailable: res.StaffUnavailable,
			})
		}
		return model.ScheduleEntry{}, &ScheduleConflictError{
			Conflicts:   res.ConflictingSchedules,
			Unavailable: res.StaffUnavailable,
		}
	}

	entry := model.ScheduleEntry{
		ID:        uuid.NewString(),
		VehicleID: p.VehicleID,
		BookingID: p.BookingID,
		DriverID:  p.DriverID,
		Window:    p.Window,
		Active:    true,
		Forced:    force && res.HasConflict,
		CreatedAt: c.now(),
	}

	next := b
	next.AssignedVehicleID = p.VehicleID
	next.AssignedDriverID = p.DriverID
	prior := next.Status
	if next.Status == model.StatusPending {
		if err := booking.Transition(&next, model.StatusAssigned, c.now()); err != nil {
			return model.ScheduleEntry{}, err
		}
	}

	updated, err := c.write(ctx, entry, next)
	if err != nil {
		return model.ScheduleEntry{}, err
	}

	assignmentsCommitted.WithLabelValues(strconv.FormatBool(entry.Forced)).Inc()
	commitLatency.Observe(time.Since(started).Seconds())
	_ = c.sink.RecordAssignment(metrics.AssignmentEvent{
		Entry:       entry,
		BookingID:   updated.ID,
		Forced:      entry.Forced,
		Latency:     time.Since(started),
		CommittedAt: c.now(),
	})
	if c.bus != nil {
		c.bus.Publish(events.AssignmentCommitted{Entry: entry, Booking: updated, Forced: entry.Forced})
		if updated.Status != prior {
			c.bus.Publish(events.BookingStatusChanged{BookingID: updated.ID, From: prior, To: updated.Status})
		}
	}
	c.log.Infof("committed assignment %s: booking %s on vehicle %s (%s)", entry.ID, updated.ID, entry.VehicleID, p.Duration())
	return entry, nil
}

// write persists the entry and the booking, in one transaction when the
// store supports it, otherwise with compensating rollback so no schedule
// entry survives without its assigned booking.
func (c *Coordinator) write(ctx context.Context, entry model.ScheduleEntry, next model.Booking) (model.Booking, error) {
	if tc, ok := c.schedules.(TxCommitter); ok {
		updated, err := tc.CommitAssignment(ctx, entry, next)
		if err != nil {
			if errors.Is(err, booking.ErrVersionConflict) {
				staleProposals.Inc()
				return model.Booking{}, &StaleProposalError{BookingID: next.ID, Reason: "booking changed during commit"}
			}
			return model.Booking{}, &CommitFailureError{Stage: "transactional write", Err: err}
		}
		return updated, nil
	}

	if err := c.schedules.Add(ctx, entry); err != nil {
		return model.Booking{}, &CommitFailureError{Stage: "schedule entry", Err: err}
	}
	superseded, err := c.schedules.Supersede(ctx, entry.BookingID, entry.ID)
	if err != nil {
		_ = c.schedules.Delete(ctx, entry.ID)
		return model.Booking{}, &CommitFailureError{Stage: "supersede", Err: err}
	}
	updated, err := c.bookings.Update(ctx, next)
	if err != nil {
		_ = c.schedules.Delete(ctx, entry.ID)
		_ = c.schedules.Reactivate(ctx, superseded)
		if errors.Is(err, booking.ErrVersionConflict) {
			staleProposals.Inc()
			return model.Booking{}, &StaleProposalError{BookingID: next.ID, Reason: "booking changed during commit"}
		}
		return model.Booking{}, &CommitFailureError{Stage: "booking update", Err: err}
	}
	return updated, nil
}

func (c *Coordinator) driverRostered(v model.Vehicle, driverID string) bool {
	for _, m := range v.Team {
		if m.UserID == driverID && m.Role == model.RoleDriver {
			return true
		}
	}
	return false
}
