package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ambufleet/dispatch/core/fleet"
	"github.com/ambufleet/dispatch/core/model"
)

// FleetStore implements fleet.Store on PostgreSQL. Rosters are stored as
// JSONB since the scheduler never queries inside them.
type FleetStore struct {
	pool *pgxpool.Pool
}

// NewFleetStore creates a FleetStore.
func NewFleetStore(pool *pgxpool.Pool) *FleetStore {
	return &FleetStore{pool: pool}
}

func (s *FleetStore) Get(ctx context.Context, id string) (model.Vehicle, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, registration, team, required_roles, optional_roles, current_mission_id
		 FROM vehicles WHERE id = $1`, id)
	v, err := scanVehicle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Vehicle{}, fmt.Errorf("%w: %s", fleet.ErrNotFound, id)
	}
	return v, err
}

func (s *FleetStore) List(ctx context.Context) ([]model.Vehicle, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, registration, team, required_roles, optional_roles, current_mission_id
		 FROM vehicles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: query vehicles: %w", err)
	}
	defer rows.Close()
	var out []model.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *FleetStore) Put(ctx context.Context, v model.Vehicle) error {
	team, err := json.Marshal(v.Team)
	if err != nil {
		return fmt.Errorf("postgres: marshal team: %w", err)
	}
	required, err := json.Marshal(v.RequiredRoles)
	if err != nil {
		return err
	}
	optional, err := json.Marshal(v.OptionalRoles)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO vehicles (id, name, registration, team, required_roles, optional_roles, current_mission_id)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (id) DO UPDATE SET
		     name = EXCLUDED.name,
		     registration = EXCLUDED.registration,
		     team = EXCLUDED.team,
		     required_roles = EXCLUDED.required_roles,
		     optional_roles = EXCLUDED.optional_roles,
		     current_mission_id = EXCLUDED.current_mission_id`,
		v.ID, v.Name, v.Registration, team, required, optional, v.CurrentMissionID)
	if err != nil {
		return fmt.Errorf("postgres: put vehicle: %w", err)
	}
	return nil
}

func (s *FleetStore) SetMission(ctx context.Context, vehicleID, bookingID string) error {
	return s.setMission(ctx, vehicleID, bookingID)
}

func (s *FleetStore) ClearMission(ctx context.Context, vehicleID string) error {
	return s.setMission(ctx, vehicleID, "")
}

func (s *FleetStore) setMission(ctx context.Context, vehicleID, bookingID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE vehicles SET current_mission_id = $2 WHERE id = $1`, vehicleID, bookingID)
	if err != nil {
		return fmt.Errorf("postgres: set mission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", fleet.ErrNotFound, vehicleID)
	}
	return nil
}

func scanVehicle(row pgx.Row) (model.Vehicle, error) {
	var (
		v                        model.Vehicle
		team, required, optional []byte
	)
	if err := row.Scan(&v.ID, &v.Name, &v.Registration, &team, &required, &optional, &v.CurrentMissionID); err != nil {
		return model.Vehicle{}, err
	}
	if err := json.Unmarshal(team, &v.Team); err != nil {
		return model.Vehicle{}, fmt.Errorf("postgres: unmarshal team: %w", err)
	}
	if err := json.Unmarshal(required, &v.RequiredRoles); err != nil {
		return model.Vehicle{}, err
	}
	if err := json.Unmarshal(optional, &v.OptionalRoles); err != nil {
		return model.Vehicle{}, err
	}
	return v, nil
}
