package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ambufleet/dispatch/core/booking"
	"github.com/ambufleet/dispatch/core/model"
	"github.com/ambufleet/dispatch/core/schedule"
)

const entryColumns = "id, vehicle_id, booking_id, driver_id, start_time, end_time, active, forced, created_at"

// ScheduleStore implements schedule.Store on PostgreSQL. It also implements
// the coordinator's transactional commit: entry insert, supersession and
// booking update happen in one transaction serialized by a row lock on the
// booking.
type ScheduleStore struct {
	pool *pgxpool.Pool
}

// NewScheduleStore creates a ScheduleStore.
func NewScheduleStore(pool *pgxpool.Pool) *ScheduleStore {
	return &ScheduleStore{pool: pool}
}

func (s *ScheduleStore) Add(ctx context.Context, e model.ScheduleEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO schedule_entries (`+entryColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.VehicleID, e.BookingID, e.DriverID, e.Window.Start, e.Window.End, e.Active, e.Forced, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: add entry: %w", err)
	}
	return nil
}

func (s *ScheduleStore) Get(ctx context.Context, id string) (model.ScheduleEntry, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM schedule_entries WHERE id = $1`, id)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ScheduleEntry{}, fmt.Errorf("%w: %s", schedule.ErrNotFound, id)
	}
	return e, err
}

func (s *ScheduleStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM schedule_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete entry: %w", err)
	}
	return nil
}

func (s *ScheduleStore) ActiveForVehicle(ctx context.Context, vehicleID string) ([]model.ScheduleEntry, error) {
	return s.query(ctx,
		`SELECT `+entryColumns+` FROM schedule_entries WHERE vehicle_id = $1 AND active ORDER BY start_time, id`,
		vehicleID)
}

func (s *ScheduleStore) ActiveForDriver(ctx context.Context, driverID string) ([]model.ScheduleEntry, error) {
	return s.query(ctx,
		`SELECT `+entryColumns+` FROM schedule_entries WHERE driver_id = $1 AND active ORDER BY start_time, id`,
		driverID)
}

func (s *ScheduleStore) Supersede(ctx context.Context, bookingID, keepID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE schedule_entries SET active = FALSE
		 WHERE booking_id = $1 AND active AND id <> $2 RETURNING id`,
		bookingID, keepID)
	if err != nil {
		return nil, fmt.Errorf("postgres: supersede: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *ScheduleStore) Reactivate(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `UPDATE schedule_entries SET active = TRUE WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("postgres: reactivate: %w", err)
	}
	return nil
}

func (s *ScheduleStore) ListDay(ctx context.Context, date time.Time) ([]model.ScheduleEntry, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return s.query(ctx,
		`SELECT `+entryColumns+` FROM schedule_entries
		 WHERE start_time < $2 AND end_time > $1 ORDER BY start_time, id`,
		dayStart, dayStart.AddDate(0, 0, 1))
}

// CommitAssignment writes the entry, supersedes the booking's prior entries
// and advances the booking in one transaction. The booking row is locked
// first so concurrent commits serialize on it; a version mismatch aborts
// with booking.ErrVersionConflict.
func (s *ScheduleStore) CommitAssignment(ctx context.Context, e model.ScheduleEntry, b model.Booking) (model.Booking, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return model.Booking{}, fmt.Errorf("postgres: begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var stored int64
	err = tx.QueryRow(ctx, `SELECT version FROM bookings WHERE id = $1 FOR UPDATE`, b.ID).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Booking{}, fmt.Errorf("%w: %s", booking.ErrNotFound, b.ID)
	}
	if err != nil {
		return model.Booking{}, fmt.Errorf("postgres: lock booking: %w", err)
	}
	if stored != b.Version {
		return model.Booking{}, fmt.Errorf("%w: %s has revision %d, commit carries %d",
			booking.ErrVersionConflict, b.ID, stored, b.Version)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO schedule_entries (`+entryColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.VehicleID, e.BookingID, e.DriverID, e.Window.Start, e.Window.End, e.Active, e.Forced, e.CreatedAt); err != nil {
		return model.Booking{}, fmt.Errorf("postgres: insert entry: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE schedule_entries SET active = FALSE WHERE booking_id = $1 AND active AND id <> $2`,
		e.BookingID, e.ID); err != nil {
		return model.Booking{}, fmt.Errorf("postgres: supersede: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE bookings SET status = $2, assigned_vehicle_id = $3, assigned_driver_id = $4,
		        version = version + 1, updated_at = $5
		 WHERE id = $1`,
		b.ID, b.Status, b.AssignedVehicleID, b.AssignedDriverID, b.UpdatedAt); err != nil {
		return model.Booking{}, fmt.Errorf("postgres: update booking: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, fmt.Errorf("postgres: commit: %w", err)
	}
	b.Version++
	return b, nil
}

func (s *ScheduleStore) query(ctx context.Context, sql string, args ...any) ([]model.ScheduleEntry, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query entries: %w", err)
	}
	defer rows.Close()
	var out []model.ScheduleEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (model.ScheduleEntry, error) {
	var e model.ScheduleEntry
	err := row.Scan(&e.ID, &e.VehicleID, &e.BookingID, &e.DriverID,
		&e.Window.Start, &e.Window.End, &e.Active, &e.Forced, &e.CreatedAt)
	return e, err
}
