package dispatch

import "fmt"

// Config defines assignment planning parameters. The operational day and
// default transport duration are observed dispatch-desk conventions, kept in
// configuration rather than code.
type Config struct {
	// DayStartHour and DayEndHour bound the operational day (default 06-22).
	DayStartHour int `json:"day_start_hour"`
	DayEndHour   int `json:"day_end_hour"`
	// DefaultDurationMinutes is the proposed transport length when the
	// booking carries no arrival estimate.
	DefaultDurationMinutes int `json:"default_duration_minutes"`
	// CommitTimeoutSeconds bounds one commit against the backing store.
	CommitTimeoutSeconds int `json:"commit_timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.DayStartHour == 0 && c.DayEndHour == 0 {
		c.DayStartHour = 6
		c.DayEndHour = 22
	}
	if c.DefaultDurationMinutes == 0 {
		c.DefaultDurationMinutes = 120
	}
	if c.CommitTimeoutSeconds == 0 {
		c.CommitTimeoutSeconds = 5
	}
}

// Validate checks the configured bounds.
func (c Config) Validate() error {
	if c.DayStartHour < 0 || c.DayStartHour > 23 || c.DayEndHour < 1 || c.DayEndHour > 24 {
		return fmt.Errorf("operational day hours out of range: %d-%d", c.DayStartHour, c.DayEndHour)
	}
	if c.DayEndHour <= c.DayStartHour {
		return fmt.Errorf("operational day must end after it starts: %d-%d", c.DayStartHour, c.DayEndHour)
	}
	if c.DefaultDurationMinutes <= 0 {
		return fmt.Errorf("default_duration_minutes must be positive")
	}
	return nil
}
