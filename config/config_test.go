package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `storage: memory
api:
  addr: ":8081"
dispatch:
  day_start_hour: 7
  day_end_hour: 21
  default_duration_minutes: 90
reconcile:
  poll_interval_seconds: 3
  driver_id: "d1"
metrics:
  prometheus_enabled: true
notify:
  enabled: true
  broker: "tcp://broker:1883"
  qos: 1
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"storage", cfg.Storage, "memory"},
		{"api.addr", cfg.API.Addr, ":8081"},
		{"api timeout default", cfg.API.RequestTimeoutSeconds, 10},
		{"day_start_hour", cfg.Dispatch.DayStartHour, 7},
		{"day_end_hour", cfg.Dispatch.DayEndHour, 21},
		{"default_duration", cfg.Dispatch.DefaultDurationMinutes, 90},
		{"commit timeout default", cfg.Dispatch.CommitTimeoutSeconds, 5},
		{"poll_interval", cfg.Reconcile.PollIntervalSeconds, 3},
		{"driver_id", cfg.Reconcile.DriverID, "d1"},
		{"prom enabled", cfg.Metrics.PrometheusEnabled, true},
		{"prom addr default", cfg.Metrics.PrometheusAddr, ":9090"},
		{"broker", cfg.Notify.Broker, "tcp://broker:1883"},
		{"topic prefix default", cfg.Notify.TopicPrefix, "ambufleet"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadDefaultsWhenSectionsOmitted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("api:\n  addr: \":8080\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Storage != StorageMemory {
		t.Fatalf("storage = %q", cfg.Storage)
	}
	if cfg.Dispatch.DayStartHour != 6 || cfg.Dispatch.DayEndHour != 22 {
		t.Fatalf("operational day = %d-%d", cfg.Dispatch.DayStartHour, cfg.Dispatch.DayEndHour)
	}
	if cfg.Dispatch.DefaultDurationMinutes != 120 {
		t.Fatalf("default duration = %d", cfg.Dispatch.DefaultDurationMinutes)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("dispatch:\n  day_end_hour: 22\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("AMBU_DISPATCH__DAY_END_HOUR", "20")
	t.Setenv("AMBU_NOTIFY__BROKER", "tcp://override:1883")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Dispatch.DayEndHour != 20 {
		t.Fatalf("day_end_hour = %d, want env override 20", cfg.Dispatch.DayEndHour)
	}
	if cfg.Notify.Broker != "tcp://override:1883" {
		t.Fatalf("notify.broker = %q, want env override", cfg.Notify.Broker)
	}
}

func TestLoadRejectsBadStorage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("storage: etcd\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown storage backend")
	}

	if err := os.WriteFile(path, []byte("storage: postgres\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for postgres storage without dsn")
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}
