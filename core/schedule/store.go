package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ambufleet/dispatch/core/model"
)

// ErrNotFound is returned when a schedule entry does not exist.
var ErrNotFound = errors.New("schedule: entry not found")

// Store holds committed schedule entries. Entries are only created by the
// assignment coordinator; superseded entries stay behind as inactive audit
// records.
type Store interface {
	Add(ctx context.Context, e model.ScheduleEntry) error
	Get(ctx context.Context, id string) (model.ScheduleEntry, error)
	Delete(ctx context.Context, id string) error
	// ActiveForVehicle returns active entries for the vehicle in ascending
	// start order.
	ActiveForVehicle(ctx context.Context, vehicleID string) ([]model.ScheduleEntry, error)
	// ActiveForDriver returns active entries for the driver in ascending
	// start order.
	ActiveForDriver(ctx context.Context, driverID string) ([]model.ScheduleEntry, error)
	// Supersede deactivates every active entry for the booking except keepID
	// and returns the ids it touched.
	Supersede(ctx context.Context, bookingID, keepID string) ([]string, error)
	// Reactivate undoes a Supersede during commit rollback.
	Reactivate(ctx context.Context, ids []string) error
	// ListDay returns all entries overlapping the calendar day of date, in
	// ascending start order.
	ListDay(ctx context.Context, date time.Time) ([]model.ScheduleEntry, error)
}

// MemoryStore is the in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]model.ScheduleEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]model.ScheduleEntry{}}
}

func (s *MemoryStore) Add(_ context.Context, e model.ScheduleEntry) error {
	s.mu.Lock()
	s.data[e.ID] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[id]
	if !ok {
		return model.ScheduleEntry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.data, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ActiveForVehicle(_ context.Context, vehicleID string) ([]model.ScheduleEntry, error) {
	return s.filter(func(e model.ScheduleEntry) bool {
		return e.Active && e.VehicleID == vehicleID
	}), nil
}

func (s *MemoryStore) ActiveForDriver(_ context.Context, driverID string) ([]model.ScheduleEntry, error) {
	return s.filter(func(e model.ScheduleEntry) bool {
		return e.Active && e.DriverID == driverID
	}), nil
}

func (s *MemoryStore) Supersede(_ context.Context, bookingID, keepID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var touched []string
	for id, e := range s.data {
		if e.Active && e.BookingID == bookingID && id != keepID {
			e.Active = false
			s.data[id] = e
			touched = append(touched, id)
		}
	}
	return touched, nil
}

func (s *MemoryStore) Reactivate(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if e, ok := s.data[id]; ok {
			e.Active = true
			s.data[id] = e
		}
	}
	return nil
}

func (s *MemoryStore) ListDay(_ context.Context, date time.Time) ([]model.ScheduleEntry, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	day := model.TimeWindow{Start: dayStart, End: dayStart.AddDate(0, 0, 1)}
	return s.filter(func(e model.ScheduleEntry) bool {
		return e.Window.Overlaps(day)
	}), nil
}

func (s *MemoryStore) filter(keep func(model.ScheduleEntry) bool) []model.ScheduleEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ScheduleEntry
	for _, e := range s.data {
		if keep(e) {
			out = append(out, e)
		}
	}
	SortByStart(out)
	return out
}

// SortByStart orders entries by ascending window start, then id for a
// stable tie-break.
func SortByStart(es []model.ScheduleEntry) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].Window.Start.Equal(es[j].Window.Start) {
			return es[i].ID < es[j].ID
		}
		return es[i].Window.Start.Before(es[j].Window.Start)
	})
}
