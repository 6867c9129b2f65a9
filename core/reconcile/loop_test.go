package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ambufleet/dispatch/core/model"
	"github.com/ambufleet/dispatch/infra/logger"
)

// scriptedSource feeds the loop a fixed sequence of states.
type scriptedSource struct {
	bookings [][]model.Booking
	errAt    int
	calls    int
}

func (s *scriptedSource) Vehicles(context.Context) ([]model.Vehicle, error) {
	if s.errAt > 0 && s.calls+1 == s.errAt {
		return nil, errors.New("backend down")
	}
	return []model.Vehicle{{ID: "v1"}}, nil
}

func (s *scriptedSource) Bookings(context.Context) ([]model.Booking, error) {
	idx := s.calls
	if idx >= len(s.bookings) {
		idx = len(s.bookings) - 1
	}
	return s.bookings[idx], nil
}

func (s *scriptedSource) Schedules(context.Context, time.Time) ([]model.ScheduleEntry, error) {
	s.calls++
	return nil, nil
}

type fakeNotifier struct {
	alerts []model.Booking
}

func (f *fakeNotifier) NotifyNewAssignment(_ context.Context, b model.Booking) error {
	f.alerts = append(f.alerts, b)
	return nil
}

func assigned(id, driverID string, start time.Time) model.Booking {
	return model.Booking{ID: id, AssignedDriverID: driverID, Status: model.StatusAssigned, RequestedStart: start}
}

func TestPollNotifiesOncePerAssignment(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	completed := assigned("bX", "d1", start)
	completed.Status = model.StatusCompleted
	src := &scriptedSource{bookings: [][]model.Booking{
		{assigned("bX", "d1", start)}, // new assignment -> alert
		{assigned("bX", "d1", start)}, // unchanged -> silent
		{completed},                   // no current assignment
		{assigned("bX", "d1", start)}, // re-assigned after a gap -> alert again
		{assigned("bY", "d1", start)}, // different booking -> alert
	}}
	notifier := &fakeNotifier{}
	loop, err := NewLoop(Config{DriverID: "d1"}, src, notifier, nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := loop.poll(ctx); err != nil {
			t.Fatalf("poll %d: %v", i, err)
		}
	}
	if len(notifier.alerts) != 3 {
		t.Fatalf("alerts = %d, want 3", len(notifier.alerts))
	}
	if notifier.alerts[0].ID != "bX" || notifier.alerts[1].ID != "bX" || notifier.alerts[2].ID != "bY" {
		t.Fatalf("alert order = %v", notifier.alerts)
	}
}

func TestPollFailureKeepsLastSnapshot(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	src := &scriptedSource{
		bookings: [][]model.Booking{{assigned("bX", "d1", start)}},
		errAt:    2,
	}
	loop, err := NewLoop(Config{DriverID: "d1"}, src, nil, nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}

	ctx := context.Background()
	if err := loop.poll(ctx); err != nil {
		t.Fatalf("first poll: %v", err)
	}
	if err := loop.poll(ctx); err == nil {
		t.Fatal("second poll should fail")
	}

	snap := loop.Snapshot()
	if len(snap.Bookings) != 1 || snap.Bookings[0].ID != "bX" {
		t.Fatalf("snapshot lost on failed poll: %+v", snap)
	}
	if cur, ok := loop.CurrentAssignment(); !ok || cur.ID != "bX" {
		t.Fatalf("current assignment = %+v, %v", cur, ok)
	}
}

func TestCurrentAssignmentPicksEarliest(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	later := assigned("late", "d1", start.Add(2*time.Hour))
	pending := model.Booking{ID: "idle", AssignedDriverID: "d1", Status: model.StatusPending, RequestedStart: start.Add(-time.Hour)}
	other := assigned("other", "d2", start.Add(-time.Hour))

	cur, ok := currentAssignment([]model.Booking{later, pending, other, assigned("early", "d1", start)}, "d1")
	if !ok || cur.ID != "early" {
		t.Fatalf("current = %+v, %v", cur, ok)
	}
	if _, ok := currentAssignment(nil, "d1"); ok {
		t.Fatal("no bookings should yield no assignment")
	}
}
