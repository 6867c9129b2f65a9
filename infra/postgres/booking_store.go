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
)

const bookingColumns = `id, patient_name, patient_phone,
	pickup_address, pickup_lat, pickup_lng,
	destination_address, destination_lat, destination_lng,
	requested_start, estimated_arrival, status,
	assigned_vehicle_id, assigned_driver_id, mobility, notes, version, updated_at`

// BookingStore implements booking.Store on PostgreSQL.
type BookingStore struct {
	pool *pgxpool.Pool
}

// NewBookingStore creates a BookingStore.
func NewBookingStore(pool *pgxpool.Pool) *BookingStore {
	return &BookingStore{pool: pool}
}

func (s *BookingStore) Get(ctx context.Context, id string) (model.Booking, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Booking{}, fmt.Errorf("%w: %s", booking.ErrNotFound, id)
	}
	return b, err
}

func (s *BookingStore) List(ctx context.Context) ([]model.Booking, error) {
	return s.query(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY requested_start, id`)
}

func (s *BookingStore) ListRange(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	return s.query(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE requested_start >= $1 AND requested_start < $2 ORDER BY requested_start, id`,
		from, to)
}

func (s *BookingStore) Put(ctx context.Context, b model.Booking) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bookings (`+bookingColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		 ON CONFLICT (id) DO UPDATE SET
		     patient_name = EXCLUDED.patient_name,
		     patient_phone = EXCLUDED.patient_phone,
		     pickup_address = EXCLUDED.pickup_address,
		     pickup_lat = EXCLUDED.pickup_lat,
		     pickup_lng = EXCLUDED.pickup_lng,
		     destination_address = EXCLUDED.destination_address,
		     destination_lat = EXCLUDED.destination_lat,
		     destination_lng = EXCLUDED.destination_lng,
		     requested_start = EXCLUDED.requested_start,
		     estimated_arrival = EXCLUDED.estimated_arrival,
		     status = EXCLUDED.status,
		     assigned_vehicle_id = EXCLUDED.assigned_vehicle_id,
		     assigned_driver_id = EXCLUDED.assigned_driver_id,
		     mobility = EXCLUDED.mobility,
		     notes = EXCLUDED.notes,
		     version = EXCLUDED.version,
		     updated_at = EXCLUDED.updated_at`,
		b.ID, b.PatientName, b.PatientPhone,
		b.Pickup.Address, b.Pickup.Lat, b.Pickup.Lng,
		b.Destination.Address, b.Destination.Lat, b.Destination.Lng,
		b.RequestedStart, b.EstimatedArrival, b.Status,
		b.AssignedVehicleID, b.AssignedDriverID, b.Mobility, b.Notes, b.Version, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: put booking: %w", err)
	}
	return nil
}

func (s *BookingStore) Update(ctx context.Context, b model.Booking) (model.Booking, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bookings SET
		     status = $2, assigned_vehicle_id = $3, assigned_driver_id = $4,
		     estimated_arrival = $5, notes = $6, version = version + 1, updated_at = $7
		 WHERE id = $1 AND version = $8`,
		b.ID, b.Status, b.AssignedVehicleID, b.AssignedDriverID,
		b.EstimatedArrival, b.Notes, b.UpdatedAt, b.Version)
	if err != nil {
		return model.Booking{}, fmt.Errorf("postgres: update booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row vanished or its version moved on.
		cur, err := s.Get(ctx, b.ID)
		if err != nil {
			return model.Booking{}, err
		}
		return model.Booking{}, fmt.Errorf("%w: %s has revision %d, update carries %d",
			booking.ErrVersionConflict, b.ID, cur.Version, b.Version)
	}
	b.Version++
	return b, nil
}

func (s *BookingStore) query(ctx context.Context, sql string, args ...any) ([]model.Booking, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query bookings: %w", err)
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.PatientName, &b.PatientPhone,
		&b.Pickup.Address, &b.Pickup.Lat, &b.Pickup.Lng,
		&b.Destination.Address, &b.Destination.Lat, &b.Destination.Lng,
		&b.RequestedStart, &b.EstimatedArrival, &b.Status,
		&b.AssignedVehicleID, &b.AssignedDriverID, &b.Mobility, &b.Notes, &b.Version, &b.UpdatedAt)
	return b, err
}
