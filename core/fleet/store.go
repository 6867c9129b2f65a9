package fleet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ambufleet/dispatch/core/model"
)

// ErrNotFound is returned when a vehicle does not exist.
var ErrNotFound = errors.New("fleet: vehicle not found")

// Store holds the vehicle roster. Vehicles are created and destroyed by the
// upstream CRUD layer; the scheduler only reads them and moves the mission
// pointer.
type Store interface {
	Get(ctx context.Context, id string) (model.Vehicle, error)
	// List returns all vehicles ordered by id.
	List(ctx context.Context) ([]model.Vehicle, error)
	Put(ctx context.Context, v model.Vehicle) error
	// SetMission points the vehicle at its in-progress booking.
	SetMission(ctx context.Context, vehicleID, bookingID string) error
	// ClearMission marks the vehicle idle again.
	ClearMission(ctx context.Context, vehicleID string) error
}

// MemoryStore is the in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]model.Vehicle
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]model.Vehicle{}}
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[id]
	if !ok {
		return model.Vehicle{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return v, nil
}

func (s *MemoryStore) List(_ context.Context) ([]model.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Vehicle, 0, len(s.data))
	for _, v := range s.data {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, v model.Vehicle) error {
	s.mu.Lock()
	s.data[v.ID] = v
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SetMission(_ context.Context, vehicleID, bookingID string) error {
	return s.mutate(vehicleID, func(v *model.Vehicle) { v.CurrentMissionID = bookingID })
}

func (s *MemoryStore) ClearMission(_ context.Context, vehicleID string) error {
	return s.mutate(vehicleID, func(v *model.Vehicle) { v.CurrentMissionID = "" })
}

func (s *MemoryStore) mutate(id string, fn func(*model.Vehicle)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	fn(&v)
	s.data[id] = v
	return nil
}
