package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWindow is returned when a window's start is not before its end.
var ErrInvalidWindow = errors.New("model: window start must be before end")

// TimeWindow is a half-open [Start, End) instant pair. Windows may span
// several calendar days.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeWindow builds a window and validates its bounds.
func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	w := TimeWindow{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return TimeWindow{}, err
	}
	return w, nil
}

// Validate checks that Start precedes End.
func (w TimeWindow) Validate() error {
	if !w.Start.Before(w.End) {
		return fmt.Errorf("%w: [%s, %s)", ErrInvalidWindow, w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	return nil
}

// Overlaps reports whether the two half-open windows intersect. Touching
// endpoints do not overlap.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration returns the span of the window.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// HumanDuration renders the window's span in days and hours once it exceeds
// a day, so a two-day transport reads "2 days 9 hours" rather than "57 hours".
func (w TimeWindow) HumanDuration() string {
	return HumanDuration(w.Duration())
}

// HumanDuration formats d for display. Sub-hour remainders are rendered in
// minutes; spans over 24h are split into days and hours.
func HumanDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	days := int(d / (24 * time.Hour))
	rem := d % (24 * time.Hour)
	hours := int(rem / time.Hour)
	minutes := int(rem % time.Hour / time.Minute)

	switch {
	case days > 0 && hours > 0:
		return fmt.Sprintf("%d %s %d %s", days, plural(days, "day"), hours, plural(hours, "hour"))
	case days > 0:
		return fmt.Sprintf("%d %s", days, plural(days, "day"))
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%d %s %d %s", hours, plural(hours, "hour"), minutes, plural(minutes, "minute"))
	case hours > 0:
		return fmt.Sprintf("%d %s", hours, plural(hours, "hour"))
	default:
		return fmt.Sprintf("%d %s", minutes, plural(minutes, "minute"))
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
