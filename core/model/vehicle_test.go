package model

import "testing"

func TestVehicleDriver(t *testing.T) {
	v := Vehicle{Team: []TeamMember{
		{UserID: "u-nurse", Role: RoleNurse},
		{UserID: "u-driver", Role: RoleDriver},
	}}
	drv, ok := v.Driver()
	if !ok || drv.UserID != "u-driver" {
		t.Fatalf("Driver = %v, %v", drv, ok)
	}
	if _, ok := (Vehicle{}).Driver(); ok {
		t.Fatal("empty roster should have no driver")
	}
}

func TestVehicleIsReady(t *testing.T) {
	withDriver := Vehicle{Team: []TeamMember{{UserID: "u1", Role: RoleDriver}}}
	if !withDriver.IsReady() {
		t.Fatal("idle vehicle with driver should be ready")
	}
	onMission := withDriver
	onMission.CurrentMissionID = "b1"
	if onMission.IsReady() {
		t.Fatal("vehicle on a mission should not be ready")
	}
	noDriver := Vehicle{Team: []TeamMember{{UserID: "u2", Role: RoleNurse}}}
	if noDriver.IsReady() {
		t.Fatal("vehicle without driver should not be ready")
	}
}

func TestStatusAssignable(t *testing.T) {
	assignable := map[BookingStatus]bool{
		StatusPending:      true,
		StatusConfirmed:    true,
		StatusAssigned:     false,
		StatusEnRoute:      false,
		StatusOnSite:       false,
		StatusTransporting: false,
		StatusCompleted:    false,
		StatusCancelled:    false,
	}
	for s, want := range assignable {
		if got := s.Assignable(); got != want {
			t.Errorf("%s.Assignable() = %v, want %v", s, got, want)
		}
	}
	if !StatusCompleted.Terminal() || !StatusCancelled.Terminal() || StatusTransporting.Terminal() {
		t.Fatal("terminal statuses are completed and cancelled only")
	}
}
