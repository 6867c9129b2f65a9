package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/ambufleet/dispatch/core/booking"
	"github.com/ambufleet/dispatch/core/fleet"
	"github.com/ambufleet/dispatch/core/model"
	"github.com/ambufleet/dispatch/core/schedule"
)

// StoreSource adapts the in-process stores as a Source, for deployments
// where the loop runs next to the authoritative state.
type StoreSource struct {
	vehicles  fleet.Store
	bookings  booking.Store
	schedules schedule.Store
}

// NewStoreSource creates a StoreSource over the given stores.
func NewStoreSource(vehicles fleet.Store, bookings booking.Store, schedules schedule.Store) (*StoreSource, error) {
	if vehicles == nil || bookings == nil || schedules == nil {
		return nil, fmt.Errorf("reconcile: nil store provided to NewStoreSource")
	}
	return &StoreSource{vehicles: vehicles, bookings: bookings, schedules: schedules}, nil
}

func (s *StoreSource) Vehicles(ctx context.Context) ([]model.Vehicle, error) {
	return s.vehicles.List(ctx)
}

func (s *StoreSource) Bookings(ctx context.Context) ([]model.Booking, error) {
	return s.bookings.List(ctx)
}

func (s *StoreSource) Schedules(ctx context.Context, date time.Time) ([]model.ScheduleEntry, error) {
	return s.schedules.ListDay(ctx, date)
}
