package model

import "github.com/teambition/rrule-go"

// UnavailabilityStatus is the reason a staff member is off duty.
type UnavailabilityStatus string

const (
	UnavailOnLeave UnavailabilityStatus = "on_leave"
	UnavailSick    UnavailabilityStatus = "sick"
	UnavailOther   UnavailabilityStatus = "other"
)

// Unavailability marks a staff member as off duty for a window. Records are
// read-only input to conflict detection; the scheduler never mutates them.
type Unavailability struct {
	UserID string               `json:"user_id"`
	Window TimeWindow           `json:"window"`
	Status UnavailabilityStatus `json:"status"`
	Notes  string               `json:"notes,omitempty"`
	// RRule, when set, repeats the window per the RFC 5545 recurrence rule,
	// anchored at Window.Start (e.g. "FREQ=WEEKLY;BYDAY=MO").
	RRule string `json:"rrule,omitempty"`
}

// Overlapping returns the occurrences of the record that intersect probe.
// A plain record yields at most its own window; a recurring record is
// expanded across the probe range.
func (u Unavailability) Overlapping(probe TimeWindow) []TimeWindow {
	if u.RRule == "" {
		if u.Window.Overlaps(probe) {
			return []TimeWindow{u.Window}
		}
		return nil
	}
	r, err := rrule.StrToRRule(u.RRule)
	if err != nil {
		// Malformed rule: degrade to the base window rather than dropping
		// the record from conflict detection.
		if u.Window.Overlaps(probe) {
			return []TimeWindow{u.Window}
		}
		return nil
	}
	r.DTStart(u.Window.Start)
	dur := u.Window.Duration()
	var out []TimeWindow
	for _, start := range r.Between(probe.Start.Add(-dur), probe.End, true) {
		occ := TimeWindow{Start: start, End: start.Add(dur)}
		if occ.Overlaps(probe) {
			out = append(out, occ)
		}
	}
	return out
}
