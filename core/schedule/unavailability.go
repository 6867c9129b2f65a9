package schedule

import (
	"context"
	"sync"

	"github.com/ambufleet/dispatch/core/model"
)

// UnavailabilitySource provides staff unavailability records for conflict
// detection. Records come from the HR side and are never written here.
type UnavailabilitySource interface {
	ForUser(ctx context.Context, userID string) ([]model.Unavailability, error)
}

// MemoryUnavailability is an in-memory UnavailabilitySource fed from the
// upstream staff system.
type MemoryUnavailability struct {
	mu   sync.RWMutex
	data map[string][]model.Unavailability
}

// NewMemoryUnavailability creates an empty source.
func NewMemoryUnavailability() *MemoryUnavailability {
	return &MemoryUnavailability{data: map[string][]model.Unavailability{}}
}

// Replace swaps the records for a user wholesale.
func (s *MemoryUnavailability) Replace(userID string, recs []model.Unavailability) {
	s.mu.Lock()
	s.data[userID] = append([]model.Unavailability(nil), recs...)
	s.mu.Unlock()
}

// Add appends a record for its user.
func (s *MemoryUnavailability) Add(rec model.Unavailability) {
	s.mu.Lock()
	s.data[rec.UserID] = append(s.data[rec.UserID], rec)
	s.mu.Unlock()
}

func (s *MemoryUnavailability) ForUser(_ context.Context, userID string) ([]model.Unavailability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Unavailability(nil), s.data[userID]...), nil
}
