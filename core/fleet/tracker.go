package fleet

import (
	"context"
	"fmt"

	"github.com/ambufleet/dispatch/core/events"
	"github.com/ambufleet/dispatch/core/logger"
	"github.com/ambufleet/dispatch/internal/eventbus"
)

// Tracker derives vehicle readiness and closes missions from the vehicle
// side. Readiness is a pure derivation from the roster and mission pointer;
// the tracker stores nothing of its own.
type Tracker struct {
	vehicles Store
	bus      eventbus.EventBus
	log      logger.Logger
}

// NewTracker creates a Tracker. bus may be nil.
func NewTracker(vehicles Store, bus eventbus.EventBus, log logger.Logger) (*Tracker, error) {
	if vehicles == nil || log == nil {
		return nil, fmt.Errorf("fleet: nil parameter provided to NewTracker")
	}
	return &Tracker{vehicles: vehicles, bus: bus, log: log}, nil
}

// IsReady reports whether the vehicle can take a new assignment: a driver is
// rostered and no mission is in progress.
func (t *Tracker) IsReady(ctx context.Context, vehicleID string) (bool, error) {
	v, err := t.vehicles.Get(ctx, vehicleID)
	if err != nil {
		return false, err
	}
	return v.IsReady(), nil
}

// CompleteMission clears the vehicle's current mission, making it ready
// again. This is the only vehicle-side way to close an active assignment;
// the booking side closes it by reaching completed.
func (t *Tracker) CompleteMission(ctx context.Context, vehicleID, notes string) error {
	v, err := t.vehicles.Get(ctx, vehicleID)
	if err != nil {
		return err
	}
	if v.CurrentMissionID == "" {
		t.log.Warnf("complete-mission on idle vehicle %s", vehicleID)
		return nil
	}
	bookingID := v.CurrentMissionID
	if err := t.vehicles.ClearMission(ctx, vehicleID); err != nil {
		return err
	}
	t.log.Infof("vehicle %s completed mission %s", vehicleID, bookingID)
	if t.bus != nil {
		t.bus.Publish(events.MissionCompleted{VehicleID: vehicleID, BookingID: bookingID, Notes: notes})
	}
	return nil
}
