package reconcile

import "fmt"

// Config defines polling parameters for the reconciliation loop.
type Config struct {
	// PollIntervalSeconds is the fixed tick between snapshot fetches.
	PollIntervalSeconds int `json:"poll_interval_seconds"`
	// DriverID enables the driver-facing variant: the loop watches that
	// driver's current assignment and raises a notification when it changes.
	DriverID string `json:"driver_id"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.PollIntervalSeconds == 0 {
		c.PollIntervalSeconds = 5
	}
}

// Validate checks the configured interval.
func (c Config) Validate() error {
	if c.PollIntervalSeconds < 1 {
		return fmt.Errorf("poll_interval_seconds must be at least 1")
	}
	return nil
}
