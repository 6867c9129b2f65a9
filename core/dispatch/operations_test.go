package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/ambufleet/dispatch/core/model"
)

func TestDetachDriver(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	entry := e.mustCommit(t, "v1", "b1", false)

	if err := e.coord.DetachDriver(ctx, "b1"); err != nil {
		t.Fatalf("detach: %v", err)
	}
	b, _ := e.bookings.Get(ctx, "b1")
	if b.Status != model.StatusPending || b.AssignedVehicleID != "" || b.AssignedDriverID != "" {
		t.Fatalf("booking = %+v", b)
	}
	got, _ := e.schedules.Get(ctx, entry.ID)
	if got.Active {
		t.Fatalf("entry still active after detach")
	}
}

func TestDetachDriverRejectedAfterDeparture(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.mustCommit(t, "v1", "b1", false)
	if err := e.coord.AcceptAssignment(ctx, "b1", "d1"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	err := e.coord.DetachDriver(ctx, "b1")
	var naErr *BookingNotAssignableError
	if !errors.As(err, &naErr) || naErr.Status != model.StatusEnRoute {
		t.Fatalf("expected BookingNotAssignableError for en_route, got %v", err)
	}
}

func TestAcceptAssignmentSetsMission(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.mustCommit(t, "v1", "b1", false)

	if err := e.coord.AcceptAssignment(ctx, "b1", "d1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	b, _ := e.bookings.Get(ctx, "b1")
	if b.Status != model.StatusEnRoute {
		t.Fatalf("booking status = %s", b.Status)
	}
	v, _ := e.vehicles.Get(ctx, "v1")
	if v.CurrentMissionID != "b1" || v.IsReady() {
		t.Fatalf("vehicle = %+v", v)
	}
}

func TestAcceptAssignmentWrongDriver(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.mustCommit(t, "v1", "b1", false)
	if err := e.coord.AcceptAssignment(ctx, "b1", "d2"); err == nil {
		t.Fatal("expected error for wrong driver")
	}
}

func TestRejectAssignment(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.mustCommit(t, "v1", "b1", false)

	if err := e.coord.RejectAssignment(ctx, "b1", "d2"); err == nil {
		t.Fatal("expected error for wrong driver")
	}
	if err := e.coord.RejectAssignment(ctx, "b1", "d1"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	b, _ := e.bookings.Get(ctx, "b1")
	if b.Status != model.StatusPending || b.Assigned() {
		t.Fatalf("booking = %+v", b)
	}
}

func TestMissionLifecycle(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	entry := e.mustCommit(t, "v1", "b1", false)

	steps := []struct {
		name string
		op   func() error
		want model.BookingStatus
	}{
		{"accept", func() error { return e.coord.AcceptAssignment(ctx, "b1", "d1") }, model.StatusEnRoute},
		{"arrive", func() error { return e.coord.MarkArrived(ctx, "b1") }, model.StatusOnSite},
		{"start", func() error { return e.coord.StartTransport(ctx, "b1") }, model.StatusTransporting},
		{"complete", func() error { return e.coord.CompleteTransport(ctx, "b1") }, model.StatusCompleted},
	}
	for _, s := range steps {
		if err := s.op(); err != nil {
			t.Fatalf("%s: %v", s.name, err)
		}
		b, _ := e.bookings.Get(ctx, "b1")
		if b.Status != s.want {
			t.Fatalf("after %s: status = %s, want %s", s.name, b.Status, s.want)
		}
	}

	// Completion releases the vehicle and closes the entry.
	v, _ := e.vehicles.Get(ctx, "v1")
	if v.CurrentMissionID != "" || !v.IsReady() {
		t.Fatalf("vehicle not released: %+v", v)
	}
	got, _ := e.schedules.Get(ctx, entry.ID)
	if got.Active {
		t.Fatalf("entry still active after completion")
	}
}

func TestLifecycleStepsOutOfOrder(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.mustCommit(t, "v1", "b1", false)

	// Cannot arrive before departing.
	if err := e.coord.MarkArrived(ctx, "b1"); err == nil {
		t.Fatal("expected invalid transition assigned -> on_site")
	}
	// Cannot complete before transporting.
	if err := e.coord.CompleteTransport(ctx, "b1"); err == nil {
		t.Fatal("expected invalid transition assigned -> completed")
	}
	b, _ := e.bookings.Get(ctx, "b1")
	if b.Status != model.StatusAssigned {
		t.Fatalf("failed steps mutated the booking: %s", b.Status)
	}
}
