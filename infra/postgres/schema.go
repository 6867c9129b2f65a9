package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS vehicles (
    id                 TEXT PRIMARY KEY,
    name               TEXT NOT NULL DEFAULT '',
    registration       TEXT NOT NULL DEFAULT '',
    team               JSONB NOT NULL DEFAULT '[]',
    required_roles     JSONB NOT NULL DEFAULT '[]',
    optional_roles     JSONB NOT NULL DEFAULT '[]',
    current_mission_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS bookings (
    id                  TEXT PRIMARY KEY,
    patient_name        TEXT NOT NULL DEFAULT '',
    patient_phone       TEXT NOT NULL DEFAULT '',
    pickup_address      TEXT NOT NULL DEFAULT '',
    pickup_lat          DOUBLE PRECISION,
    pickup_lng          DOUBLE PRECISION,
    destination_address TEXT NOT NULL DEFAULT '',
    destination_lat     DOUBLE PRECISION,
    destination_lng     DOUBLE PRECISION,
    requested_start     TIMESTAMPTZ NOT NULL,
    estimated_arrival   TIMESTAMPTZ,
    status              TEXT NOT NULL,
    assigned_vehicle_id TEXT NOT NULL DEFAULT '',
    assigned_driver_id  TEXT NOT NULL DEFAULT '',
    mobility            TEXT NOT NULL DEFAULT '',
    notes               TEXT NOT NULL DEFAULT '',
    version             BIGINT NOT NULL DEFAULT 0,
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS schedule_entries (
    id         TEXT PRIMARY KEY,
    vehicle_id TEXT NOT NULL,
    booking_id TEXT NOT NULL,
    driver_id  TEXT NOT NULL,
    start_time TIMESTAMPTZ NOT NULL,
    end_time   TIMESTAMPTZ NOT NULL,
    active     BOOLEAN NOT NULL DEFAULT TRUE,
    forced     BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_schedule_vehicle_active ON schedule_entries (vehicle_id) WHERE active;
CREATE INDEX IF NOT EXISTS idx_schedule_driver_active  ON schedule_entries (driver_id) WHERE active;
CREATE INDEX IF NOT EXISTS idx_schedule_booking        ON schedule_entries (booking_id);
`

// Migrate creates the scheduler tables if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}
