package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/ambufleet/dispatch/core/model"
)

// MockNotifier records alerts, for tests.
type MockNotifier struct {
	mu       sync.Mutex
	Alerts   []model.Booking
	FailNext bool
}

// NewMockNotifier creates a new MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// NotifyNewAssignment records the booking or fails once if configured.
func (m *MockNotifier) NotifyNewAssignment(_ context.Context, b model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext {
		m.FailNext = false
		return fmt.Errorf("notify failed")
	}
	m.Alerts = append(m.Alerts, b)
	return nil
}

// Count returns the number of recorded alerts.
func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Alerts)
}
