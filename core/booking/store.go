package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ambufleet/dispatch/core/model"
)

// ErrNotFound is returned when a booking does not exist.
var ErrNotFound = errors.New("booking: not found")

// Store is the authoritative booking collection. Update bumps the booking's
// Version so stale proposals can be detected at commit time.
type Store interface {
	Get(ctx context.Context, id string) (model.Booking, error)
	// List returns all bookings ordered by requested start.
	List(ctx context.Context) ([]model.Booking, error)
	// ListRange returns bookings whose requested start falls in [from, to).
	ListRange(ctx context.Context, from, to time.Time) ([]model.Booking, error)
	Put(ctx context.Context, b model.Booking) error
	// Update persists b if its Version still matches the stored revision,
	// then increments the version. A mismatch returns ErrVersionConflict.
	Update(ctx context.Context, b model.Booking) (model.Booking, error)
}

// ErrVersionConflict is returned by Update when the stored booking moved on.
var ErrVersionConflict = errors.New("booking: version conflict")

// MemoryStore is the in-memory Store used by tests and single-node setups.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]model.Booking
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]model.Booking{}}
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[id]
	if !ok {
		return model.Booking{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return b, nil
}

func (s *MemoryStore) List(_ context.Context) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Booking, 0, len(s.data))
	for _, b := range s.data {
		out = append(out, b)
	}
	sortBookings(out)
	return out, nil
}

func (s *MemoryStore) ListRange(_ context.Context, from, to time.Time) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Booking
	for _, b := range s.data {
		if !b.RequestedStart.Before(from) && b.RequestedStart.Before(to) {
			out = append(out, b)
		}
	}
	sortBookings(out)
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, b model.Booking) error {
	s.mu.Lock()
	s.data[b.ID] = b
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Update(_ context.Context, b model.Booking) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.data[b.ID]
	if !ok {
		return model.Booking{}, fmt.Errorf("%w: %s", ErrNotFound, b.ID)
	}
	if cur.Version != b.Version {
		return model.Booking{}, fmt.Errorf("%w: %s has revision %d, update carries %d",
			ErrVersionConflict, b.ID, cur.Version, b.Version)
	}
	b.Version++
	s.data[b.ID] = b
	return b, nil
}

func sortBookings(bs []model.Booking) {
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].RequestedStart.Equal(bs[j].RequestedStart) {
			return bs[i].ID < bs[j].ID
		}
		return bs[i].RequestedStart.Before(bs[j].RequestedStart)
	})
}
