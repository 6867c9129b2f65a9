package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ambufleet/dispatch/core/booking"
	"github.com/ambufleet/dispatch/core/events"
	"github.com/ambufleet/dispatch/core/fleet"
	"github.com/ambufleet/dispatch/core/model"
	"github.com/ambufleet/dispatch/core/schedule"
	"github.com/ambufleet/dispatch/infra/logger"
	"github.com/ambufleet/dispatch/internal/eventbus"
)

type testEnv struct {
	vehicles  *fleet.MemoryStore
	bookings  *booking.MemoryStore
	schedules *schedule.MemoryStore
	unavail   *schedule.MemoryUnavailability
	bus       *eventbus.Bus
	coord     *Coordinator
}

var testNow = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		vehicles:  fleet.NewMemoryStore(),
		bookings:  booking.NewMemoryStore(),
		schedules: schedule.NewMemoryStore(),
		unavail:   schedule.NewMemoryUnavailability(),
		bus:       eventbus.New(),
	}
	det, err := schedule.NewDetector(e.schedules, e.unavail)
	if err != nil {
		t.Fatalf("detector: %v", err)
	}
	e.coord, err = NewCoordinator(Config{}, e.vehicles, e.bookings, e.schedules, det, e.bus, nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("coordinator: %v", err)
	}
	e.coord.SetClock(func() time.Time { return testNow })

	ctx := context.Background()
	seed := []model.Vehicle{
		{ID: "v1", Name: "Unit 1", Team: []model.TeamMember{
			{UserID: "d1", Name: "Ada", Role: model.RoleDriver},
			{UserID: "n1", Name: "Nia", Role: model.RoleNurse},
		}},
		{ID: "v2", Name: "Unit 2", Team: []model.TeamMember{
			{UserID: "d2", Name: "Bo", Role: model.RoleDriver},
		}},
		{ID: "v3", Name: "Unit 3", Team: []model.TeamMember{
			{UserID: "n2", Name: "Cam", Role: model.RoleNurse},
		}},
	}
	for _, v := range seed {
		if err := e.vehicles.Put(ctx, v); err != nil {
			t.Fatalf("seed vehicle: %v", err)
		}
	}
	for _, b := range []model.Booking{
		{ID: "b1", PatientName: "Jean", Status: model.StatusPending, RequestedStart: testNow.Add(time.Hour)},
		{ID: "b2", PatientName: "Luc", Status: model.StatusPending, RequestedStart: testNow.Add(2 * time.Hour)},
	} {
		if err := e.bookings.Put(ctx, b); err != nil {
			t.Fatalf("seed booking: %v", err)
		}
	}
	return e
}

func (e *testEnv) mustCommit(t *testing.T, vehicleID, bookingID string, force bool) model.ScheduleEntry {
	t.Helper()
	ctx := context.Background()
	p, err := e.coord.ProposeAssignment(ctx, vehicleID, bookingID)
	if err != nil {
		t.Fatalf("propose %s on %s: %v", bookingID, vehicleID, err)
	}
	entry, err := e.coord.CommitAssignment(ctx, p, force)
	if err != nil {
		t.Fatalf("commit %s on %s: %v", bookingID, vehicleID, err)
	}
	return entry
}

func TestProposeAssignment(t *testing.T) {
	e := newTestEnv(t)
	p, err := e.coord.ProposeAssignment(context.Background(), "v1", "b1")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if p.VehicleID != "v1" || p.BookingID != "b1" || p.DriverID != "d1" {
		t.Fatalf("proposal = %+v", p)
	}
	if !p.Window.Start.Equal(testNow.Add(time.Hour)) || p.Window.Duration() != 2*time.Hour {
		t.Fatalf("window = %+v", p.Window)
	}
	if p.Duration() != "2 hours" {
		t.Fatalf("duration = %q", p.Duration())
	}
	// Nothing was committed.
	if entries, _ := e.schedules.ActiveForVehicle(context.Background(), "v1"); len(entries) != 0 {
		t.Fatalf("propose must not write entries: %+v", entries)
	}
}

func TestProposeAssignmentNoDriver(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.coord.ProposeAssignment(context.Background(), "v3", "b1")
	if !errors.Is(err, ErrNoDriverOnVehicle) {
		t.Fatalf("expected ErrNoDriverOnVehicle, got %v", err)
	}
}

func TestProposeAssignmentNotAssignable(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	b, _ := e.bookings.Get(ctx, "b1")
	b.Status = model.StatusTransporting
	if _, err := e.bookings.Update(ctx, b); err != nil {
		t.Fatalf("update: %v", err)
	}
	_, err := e.coord.ProposeAssignment(ctx, "v1", "b1")
	var naErr *BookingNotAssignableError
	if !errors.As(err, &naErr) || naErr.Status != model.StatusTransporting {
		t.Fatalf("expected BookingNotAssignableError, got %v", err)
	}
}

func TestProposeWindowFromArrivalEstimate(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	b, _ := e.bookings.Get(ctx, "b1")
	arrival := b.RequestedStart.Add(57 * time.Hour)
	b.EstimatedArrival = &arrival
	if _, err := e.bookings.Update(ctx, b); err != nil {
		t.Fatalf("update: %v", err)
	}

	p, err := e.coord.ProposeAssignment(ctx, "v1", "b1")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if !p.Window.End.Equal(arrival) {
		t.Fatalf("window end = %v, want %v", p.Window.End, arrival)
	}
	if p.Duration() != "2 days 9 hours" {
		t.Fatalf("duration = %q", p.Duration())
	}
}

func TestProposeWindowCappedAtDayEnd(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	late := model.Booking{ID: "b-late", Status: model.StatusPending,
		RequestedStart: time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC)}
	if err := e.bookings.Put(ctx, late); err != nil {
		t.Fatalf("put: %v", err)
	}
	p, err := e.coord.ProposeAssignment(ctx, "v1", "b-late")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	wantEnd := time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC)
	if !p.Window.End.Equal(wantEnd) {
		t.Fatalf("window end = %v, want day end %v", p.Window.End, wantEnd)
	}
}

func TestProposeWindowClampedToDayStart(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	early := model.Booking{ID: "b-early", Status: model.StatusPending,
		RequestedStart: time.Date(2026, 3, 10, 4, 30, 0, 0, time.UTC)}
	if err := e.bookings.Put(ctx, early); err != nil {
		t.Fatalf("put: %v", err)
	}
	p, err := e.coord.ProposeAssignment(ctx, "v1", "b-early")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	wantStart := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	if !p.Window.Start.Equal(wantStart) {
		t.Fatalf("window start = %v, want day start %v", p.Window.Start, wantStart)
	}
	if p.Window.Duration() != 2*time.Hour {
		t.Fatalf("duration = %v", p.Window.Duration())
	}
}

func TestCommitAssignment(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	sub := e.bus.Subscribe()

	entry := e.mustCommit(t, "v1", "b1", false)
	if !entry.Active || entry.Forced {
		t.Fatalf("entry = %+v", entry)
	}

	b, _ := e.bookings.Get(ctx, "b1")
	if b.Status != model.StatusAssigned || b.AssignedVehicleID != "v1" || b.AssignedDriverID != "d1" {
		t.Fatalf("booking = %+v", b)
	}
	if b.Version != 1 {
		t.Fatalf("version = %d, want 1", b.Version)
	}

	ev, ok := (<-sub).(events.AssignmentCommitted)
	if !ok || ev.Entry.ID != entry.ID || ev.Forced {
		t.Fatalf("first event = %+v", ev)
	}
	st, ok := (<-sub).(events.BookingStatusChanged)
	if !ok || st.From != model.StatusPending || st.To != model.StatusAssigned {
		t.Fatalf("second event = %+v", st)
	}
}

func TestCommitConflictAndForce(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	first := e.mustCommit(t, "v1", "b1", false)

	// b2 wants the same vehicle one hour into b1's window.
	p2, err := e.coord.ProposeAssignment(ctx, "v1", "b2")
	if err != nil {
		t.Fatalf("propose b2: %v", err)
	}

	res, err := e.coord.CheckAvailability(ctx, p2)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !res.HasConflict || len(res.ConflictingSchedules) != 1 || res.ConflictingSchedules[0].ID != first.ID {
		t.Fatalf("check result = %+v", res)
	}

	_, err = e.coord.CommitAssignment(ctx, p2, false)
	var conflictErr *ScheduleConflictError
	if !errors.As(err, &conflictErr) || len(conflictErr.Conflicts) != 1 {
		t.Fatalf("expected ScheduleConflictError, got %v", err)
	}
	// The failed commit left nothing behind.
	b2, _ := e.bookings.Get(ctx, "b2")
	if b2.Status != model.StatusPending || b2.AssignedVehicleID != "" {
		t.Fatalf("b2 mutated by failed commit: %+v", b2)
	}

	forced, err := e.coord.CommitAssignment(ctx, p2, true)
	if err != nil {
		t.Fatalf("forced commit: %v", err)
	}
	if !forced.Forced || !forced.Active {
		t.Fatalf("forced entry = %+v", forced)
	}
	// Both entries coexist on the vehicle.
	entries, _ := e.schedules.ActiveForVehicle(ctx, "v1")
	if len(entries) != 2 {
		t.Fatalf("active entries = %+v", entries)
	}
}

func TestCommitStaleProposal(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p, err := e.coord.ProposeAssignment(ctx, "v1", "b1")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	// The booking changes underneath the open proposal.
	b, _ := e.bookings.Get(ctx, "b1")
	b.Notes = "edited by the desk"
	if _, err := e.bookings.Update(ctx, b); err != nil {
		t.Fatalf("update: %v", err)
	}

	_, err = e.coord.CommitAssignment(ctx, p, false)
	var stale *StaleProposalError
	if !errors.As(err, &stale) || stale.BookingID != "b1" {
		t.Fatalf("expected StaleProposalError, got %v", err)
	}
}

func TestCommitDriverNoLongerRostered(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p, err := e.coord.ProposeAssignment(ctx, "v1", "b1")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	// The driver is pulled off the roster before commit.
	v, _ := e.vehicles.Get(ctx, "v1")
	v.Team = []model.TeamMember{{UserID: "n1", Role: model.RoleNurse}}
	if err := e.vehicles.Put(ctx, v); err != nil {
		t.Fatalf("put: %v", err)
	}

	_, err = e.coord.CommitAssignment(ctx, p, false)
	var stale *StaleProposalError
	if !errors.As(err, &stale) {
		t.Fatalf("expected StaleProposalError, got %v", err)
	}
}

func TestCommitInvalidWindow(t *testing.T) {
	e := newTestEnv(t)
	p := model.AssignmentProposal{
		VehicleID: "v1", BookingID: "b1", DriverID: "d1",
		Window: model.TimeWindow{Start: testNow, End: testNow},
	}
	if _, err := e.coord.CommitAssignment(context.Background(), p, false); !errors.Is(err, model.ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestConcurrentCommitsSerializePerVehicle(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	p1, err := e.coord.ProposeAssignment(ctx, "v1", "b1")
	if err != nil {
		t.Fatalf("propose b1: %v", err)
	}
	p2, err := e.coord.ProposeAssignment(ctx, "v1", "b2")
	if err != nil {
		t.Fatalf("propose b2: %v", err)
	}
	// Make the windows overlap so only one commit can win.
	p2.Window = p1.Window

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, p := range []model.AssignmentProposal{p1, p2} {
		wg.Add(1)
		go func(i int, p model.AssignmentProposal) {
			defer wg.Done()
			_, errs[i] = e.coord.CommitAssignment(ctx, p, false)
		}(i, p)
	}
	wg.Wait()

	var committed, conflicted int
	for _, err := range errs {
		var conflictErr *ScheduleConflictError
		switch {
		case err == nil:
			committed++
		case errors.As(err, &conflictErr):
			conflicted++
		default:
			t.Fatalf("unexpected commit error: %v", err)
		}
	}
	if committed != 1 || conflicted != 1 {
		t.Fatalf("committed=%d conflicted=%d, want exactly one of each", committed, conflicted)
	}
	entries, _ := e.schedules.ActiveForVehicle(ctx, "v1")
	if len(entries) != 1 {
		t.Fatalf("active entries = %+v", entries)
	}
}

func TestReassignmentSupersedesPriorEntry(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	first := e.mustCommit(t, "v1", "b1", false)

	// Back to pending, then commit onto another vehicle.
	if err := e.coord.DetachDriver(ctx, "b1"); err != nil {
		t.Fatalf("detach: %v", err)
	}
	second := e.mustCommit(t, "v2", "b1", false)

	old, err := e.schedules.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get first entry: %v", err)
	}
	if old.Active {
		t.Fatalf("first entry still active after reassignment")
	}
	cur, _ := e.schedules.Get(ctx, second.ID)
	if !cur.Active {
		t.Fatalf("second entry inactive")
	}
	b, _ := e.bookings.Get(ctx, "b1")
	if b.AssignedVehicleID != "v2" || b.AssignedDriverID != "d2" {
		t.Fatalf("booking = %+v", b)
	}
}
