package api

// Config defines the HTTP listener settings.
type Config struct {
	Addr string `json:"addr"`
	// RequestTimeoutSeconds bounds each request so a slow store surfaces as
	// a retryable error instead of a hung client.
	RequestTimeoutSeconds int `json:"request_timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = 10
	}
}
