package dispatch

import (
	"context"
	"fmt"

	"github.com/ambufleet/dispatch/core/booking"
	"github.com/ambufleet/dispatch/core/events"
	"github.com/ambufleet/dispatch/core/model"
)

// DetachDriver clears the booking's assignment and returns it to pending.
// Only legal before departure: an active transport cannot be silently
// unassigned.
func (c *Coordinator) DetachDriver(ctx context.Context, bookingID string) error {
	b, err := c.bookings.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	switch b.Status {
	case model.StatusPending, model.StatusConfirmed, model.StatusAssigned:
	default:
		return &BookingNotAssignableError{BookingID: b.ID, Status: b.Status}
	}
	unlock := c.locks.lock("vehicle/"+b.AssignedVehicleID, "driver/"+b.AssignedDriverID)
	defer unlock()

	vehicleID, driverID := b.AssignedVehicleID, b.AssignedDriverID
	prior := b.Status
	b.AssignedVehicleID = ""
	b.AssignedDriverID = ""
	if b.Status != model.StatusPending {
		if err := booking.Transition(&b, model.StatusPending, c.now()); err != nil {
			return err
		}
	}

	superseded, err := c.schedules.Supersede(ctx, b.ID, "")
	if err != nil {
		return fmt.Errorf("dispatch: supersede on detach: %w", err)
	}
	if _, err := c.bookings.Update(ctx, b); err != nil {
		_ = c.schedules.Reactivate(ctx, superseded)
		return fmt.Errorf("dispatch: detach booking %s: %w", b.ID, err)
	}

	driversDetached.Inc()
	if c.bus != nil {
		c.bus.Publish(events.AssignmentDetached{BookingID: b.ID, VehicleID: vehicleID, DriverID: driverID})
		if prior != b.Status {
			c.bus.Publish(events.BookingStatusChanged{BookingID: b.ID, From: prior, To: b.Status})
		}
	}
	c.log.Infof("detached driver %s from booking %s", driverID, b.ID)
	return nil
}

// AcceptAssignment is the driver-side acceptance handshake: the booking
// moves assigned -> en_route and the vehicle's mission pointer is set.
func (c *Coordinator) AcceptAssignment(ctx context.Context, bookingID, driverID string) error {
	return c.handshake(ctx, bookingID, driverID, func(b *model.Booking) error {
		return booking.Transition(b, model.StatusEnRoute, c.now())
	}, func(b model.Booking) error {
		return c.vehicles.SetMission(ctx, b.AssignedVehicleID, b.ID)
	})
}

// RejectAssignment is the driver-side rejection handshake: the booking
// returns to pending with its assignment cleared and the schedule entry
// superseded.
func (c *Coordinator) RejectAssignment(ctx context.Context, bookingID, driverID string) error {
	b, err := c.bookings.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.AssignedDriverID != driverID {
		return fmt.Errorf("dispatch: booking %s is not assigned to driver %s", bookingID, driverID)
	}
	return c.DetachDriver(ctx, bookingID)
}

// MarkArrived records arrival at the pickup site: en_route -> on_site.
func (c *Coordinator) MarkArrived(ctx context.Context, bookingID string) error {
	return c.advance(ctx, bookingID, model.StatusOnSite)
}

// StartTransport records the start of patient transport: on_site ->
// transporting.
func (c *Coordinator) StartTransport(ctx context.Context, bookingID string) error {
	return c.advance(ctx, bookingID, model.StatusTransporting)
}

// CompleteTransport closes the mission: transporting -> completed, the
// booking's schedule entries are closed and the vehicle becomes ready again.
func (c *Coordinator) CompleteTransport(ctx context.Context, bookingID string) error {
	b, err := c.bookings.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	unlock := c.locks.lock("vehicle/"+b.AssignedVehicleID, "driver/"+b.AssignedDriverID)
	defer unlock()

	prior := b.Status
	if err := booking.Transition(&b, model.StatusCompleted, c.now()); err != nil {
		return err
	}
	updated, err := c.bookings.Update(ctx, b)
	if err != nil {
		return fmt.Errorf("dispatch: complete booking %s: %w", b.ID, err)
	}
	// The entry stays behind as an inactive audit record.
	if _, err := c.schedules.Supersede(ctx, b.ID, ""); err != nil {
		c.log.Errorf("close schedule entries for %s: %v", b.ID, err)
	}
	if updated.AssignedVehicleID != "" {
		if err := c.vehicles.ClearMission(ctx, updated.AssignedVehicleID); err != nil {
			c.log.Errorf("clear mission on %s: %v", updated.AssignedVehicleID, err)
		}
	}
	if c.bus != nil {
		c.bus.Publish(events.BookingStatusChanged{BookingID: updated.ID, From: prior, To: updated.Status})
	}
	c.log.Infof("booking %s completed", updated.ID)
	return nil
}

// advance applies a single lifecycle step to the booking.
func (c *Coordinator) advance(ctx context.Context, bookingID string, to model.BookingStatus) error {
	b, err := c.bookings.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	prior := b.Status
	if err := booking.Transition(&b, to, c.now()); err != nil {
		return err
	}
	if _, err := c.bookings.Update(ctx, b); err != nil {
		return fmt.Errorf("dispatch: advance booking %s to %s: %w", bookingID, to, err)
	}
	if c.bus != nil {
		c.bus.Publish(events.BookingStatusChanged{BookingID: b.ID, From: prior, To: to})
	}
	return nil
}

// handshake applies the transition and a follow-up side effect for the
// driver identified by driverID.
func (c *Coordinator) handshake(ctx context.Context, bookingID, driverID string, step func(*model.Booking) error, after func(model.Booking) error) error {
	b, err := c.bookings.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.AssignedDriverID != driverID {
		return fmt.Errorf("dispatch: booking %s is not assigned to driver %s", bookingID, driverID)
	}
	prior := b.Status
	if err := step(&b); err != nil {
		return err
	}
	updated, err := c.bookings.Update(ctx, b)
	if err != nil {
		return fmt.Errorf("dispatch: handshake on booking %s: %w", bookingID, err)
	}
	if err := after(updated); err != nil {
		return fmt.Errorf("dispatch: handshake side effect on booking %s: %w", bookingID, err)
	}
	if c.bus != nil {
		c.bus.Publish(events.BookingStatusChanged{BookingID: updated.ID, From: prior, To: updated.Status})
	}
	return nil
}
