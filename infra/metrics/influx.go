package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/ambufleet/dispatch/core/metrics"
	"github.com/ambufleet/dispatch/infra/logger"
)

// InfluxSink writes scheduler events to an InfluxDB instance using the
// official client. It backs the assignment audit trail.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink for the configured InfluxDB endpoint.
func NewInfluxSink(cfg coremetrics.Config) *InfluxSink {
	base := strings.TrimSuffix(cfg.InfluxURL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.InfluxToken,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg coremetrics.Config) coremetrics.Sink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordAssignment writes the committed assignment as a point.
func (s *InfluxSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("assignment_event").
		AddTag("vehicle_id", ev.Entry.VehicleID).
		AddTag("driver_id", ev.Entry.DriverID).
		AddTag("booking_id", ev.BookingID).
		AddTag("forced", strconv.FormatBool(ev.Forced)).
		AddTag("component", "assignment_coordinator").
		AddField("window_start", ev.Entry.Window.Start.Format(time.RFC3339)).
		AddField("window_end", ev.Entry.Window.End.Format(time.RFC3339)).
		AddField("latency_ms", ev.Latency.Milliseconds()).
		SetTime(ev.CommittedAt)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordConflictCheck writes one availability probe.
func (s *InfluxSink) RecordConflictCheck(ev coremetrics.ConflictCheckEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("conflict_check").
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("driver_id", ev.DriverID).
		AddField("conflicts", ev.Conflicts).
		AddField("unavailable", ev.Unavailable).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPoll writes one reconciliation cycle.
func (s *InfluxSink) RecordPoll(ev coremetrics.PollEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("poll_cycle").
		AddTag("component", ev.Component).
		AddField("vehicles", ev.Vehicles).
		AddField("bookings", ev.Bookings).
		AddField("schedules", ev.Schedules).
		AddField("duration_ms", ev.Duration.Milliseconds()).
		SetTime(ev.Time)
	if ev.Error != "" {
		p.AddTag("outcome", "error")
	} else {
		p.AddTag("outcome", "ok")
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}
