package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS parking_spots (
		id                BIGSERIAL PRIMARY KEY,
		label             TEXT NOT NULL,
		state             TEXT NOT NULL DEFAULT 'AVAILABLE',
		reservation_start TIMESTAMPTZ,
		reservation_end   TIMESTAMPTZ,
		timeout_minutes   INT NOT NULL DEFAULT 15,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_parking_spots_label ON parking_spots(label);`,
	`CREATE INDEX IF NOT EXISTS idx_parking_spots_state ON parking_spots(state);`,
	`CREATE TABLE IF NOT EXISTS vehicles (
		id         BIGSERIAL PRIMARY KEY,
		plate      TEXT NOT NULL,
		owner      TEXT,
		phone      TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_vehicles_plate ON vehicles(plate);`,
	`CREATE TABLE IF NOT EXISTS parking_sessions (
		id                BIGSERIAL PRIMARY KEY,
		vehicle_id        BIGINT NOT NULL REFERENCES vehicles(id),
		spot_id           BIGINT NOT NULL REFERENCES parking_spots(id),
		entry_time        TIMESTAMPTZ NOT NULL,
		exit_time         TIMESTAMPTZ,
		is_reservation    BOOLEAN NOT NULL DEFAULT false,
		reservation_start TIMESTAMPTZ,
		reservation_end   TIMESTAMPTZ,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_parking_sessions_vehicle_id ON parking_sessions(vehicle_id);`,
	`CREATE INDEX IF NOT EXISTS idx_parking_sessions_spot_id ON parking_sessions(spot_id);`,
	`CREATE INDEX IF NOT EXISTS idx_parking_sessions_open ON parking_sessions(vehicle_id) WHERE exit_time IS NULL;`,
	`CREATE TABLE IF NOT EXISTS payments (
		id           BIGSERIAL PRIMARY KEY,
		session_id   BIGINT NOT NULL REFERENCES parking_sessions(id),
		amount       NUMERIC(10,2) NOT NULL,
		status       TEXT NOT NULL DEFAULT 'pending',
		payment_time TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_payments_session_id ON payments(session_id);`,
	`CREATE TABLE IF NOT EXISTS gate_events (
		id          BIGSERIAL PRIMARY KEY,
		gate        TEXT NOT NULL,
		plate       TEXT,
		confidence  NUMERIC(5,2),
		success     BOOLEAN NOT NULL,
		message     TEXT NOT NULL,
		raw_payload JSONB,
		event_time  TIMESTAMPTZ NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_gate_events_plate ON gate_events(plate);`,
	`CREATE INDEX IF NOT EXISTS idx_gate_events_event_time ON gate_events(event_time);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

var seedStatements = []string{
	`INSERT INTO parking_spots (label)
		SELECT 'A' || i FROM generate_series(1, 10) AS i
		ON CONFLICT (label) DO NOTHING;`,
	`INSERT INTO vehicles (plate, owner, phone) VALUES
		('ABC123', 'John Doe', '+1234567890'),
		('XYZ789', 'Jane Smith', '+0987654321')
		ON CONFLICT (plate) DO NOTHING;`,
}

// Seed inserts demo spots and vehicles for development environments.
func Seed(db *gorm.DB) error {
	for i, stmt := range seedStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("seed %d failed: %w", i+1, err)
		}
	}
	return nil
}
