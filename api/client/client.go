// Package client is the HTTP client for the scheduler API. It backs the
// driver-side reconciliation loop as its state source and carries the driver
// accept/reject handshakes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ambufleet/dispatch/core/model"
)

// Config defines the client's target and timeout.
type Config struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080"
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 10
	}
}

// Client talks to the scheduler API. It implements reconcile.Source.
type Client struct {
	base string
	http *http.Client
}

// New creates a Client.
func New(cfg Config) *Client {
	cfg.SetDefaults()
	return &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api client: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Vehicles fetches the fleet.
func (c *Client) Vehicles(ctx context.Context) ([]model.Vehicle, error) {
	var out []model.Vehicle
	err := c.get(ctx, "/api/v1/vehicles", nil, &out)
	return out, err
}

// Bookings fetches all bookings.
func (c *Client) Bookings(ctx context.Context) ([]model.Booking, error) {
	var out []model.Booking
	err := c.get(ctx, "/api/v1/bookings", nil, &out)
	return out, err
}

// Schedules fetches the schedule entries touching the given day.
func (c *Client) Schedules(ctx context.Context, date time.Time) ([]model.ScheduleEntry, error) {
	var out []model.ScheduleEntry
	err := c.get(ctx, "/api/v1/schedules", url.Values{"date": {date.Format("2006-01-02")}}, &out)
	return out, err
}

// FindConflicts probes a window against the committed schedule.
func (c *Client) FindConflicts(ctx context.Context, vehicleID, driverID string, w model.TimeWindow) (map[string]any, error) {
	q := url.Values{
		"vehicle_id": {vehicleID},
		"start_time": {w.Start.Format(time.RFC3339)},
		"end_time":   {w.End.Format(time.RFC3339)},
	}
	if driverID != "" {
		q.Set("driver_id", driverID)
	}
	var out map[string]any
	err := c.get(ctx, "/api/v1/conflicts", q, &out)
	return out, err
}

// ProposeAssignment asks the scheduler for an assignment candidate.
func (c *Client) ProposeAssignment(ctx context.Context, vehicleID, bookingID string) (model.AssignmentProposal, error) {
	var out struct {
		Proposal model.AssignmentProposal `json:"proposal"`
		Duration string                   `json:"duration"`
	}
	err := c.post(ctx, "/api/v1/assignments/propose", map[string]string{
		"vehicle_id": vehicleID,
		"booking_id": bookingID,
	}, &out)
	return out.Proposal, err
}

// CommitAssignment commits a proposal, optionally forcing past conflicts.
func (c *Client) CommitAssignment(ctx context.Context, p model.AssignmentProposal, force bool) (model.ScheduleEntry, error) {
	path := "/api/v1/assignments/commit"
	if force {
		path += "?force=true"
	}
	var out model.ScheduleEntry
	err := c.post(ctx, path, p, &out)
	return out, err
}

// AcceptAssignment confirms the assignment on behalf of the driver.
func (c *Client) AcceptAssignment(ctx context.Context, bookingID, driverID string) error {
	return c.post(ctx, "/api/v1/bookings/"+bookingID+"/accept", map[string]string{"driver_id": driverID}, nil)
}

// RejectAssignment declines the assignment on behalf of the driver.
func (c *Client) RejectAssignment(ctx context.Context, bookingID, driverID string) error {
	return c.post(ctx, "/api/v1/bookings/"+bookingID+"/reject", map[string]string{"driver_id": driverID}, nil)
}

// MarkArrived reports arrival at the pickup site.
func (c *Client) MarkArrived(ctx context.Context, bookingID string) error {
	return c.post(ctx, "/api/v1/bookings/"+bookingID+"/arrive", nil, nil)
}

// StartTransport reports the start of patient transport.
func (c *Client) StartTransport(ctx context.Context, bookingID string) error {
	return c.post(ctx, "/api/v1/bookings/"+bookingID+"/start-transport", nil, nil)
}

// CompleteTransport reports the end of the mission.
func (c *Client) CompleteTransport(ctx context.Context, bookingID string) error {
	return c.post(ctx, "/api/v1/bookings/"+bookingID+"/complete", nil, nil)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("api client: build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api client: marshal body: %w", err)
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, buf)
	if err != nil {
		return fmt.Errorf("api client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api client: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Code = "unknown"
			apiErr.Message = resp.Status
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api client: decode %s: %w", req.URL.Path, err)
	}
	return nil
}
