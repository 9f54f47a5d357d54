package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds the clinic tables touched by this service. Statements are
// idempotent so EnsureSchema can run on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS patient (
		id UUID PRIMARY KEY,
		patient_code VARCHAR(32) NOT NULL UNIQUE,
		full_name VARCHAR(255) NOT NULL,
		date_of_birth DATE,
		sex VARCHAR(16),
		phone VARCHAR(32),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_patient_full_name ON patient (LOWER(full_name))`,
	`CREATE TABLE IF NOT EXISTS consultation (
		id UUID PRIMARY KEY,
		patient_id UUID NOT NULL REFERENCES patient(id),
		doctor_id VARCHAR(64),
		doctor_name VARCHAR(255),
		status VARCHAR(32) NOT NULL,
		complaint TEXT,
		xray_note TEXT,
		xray_radiologist VARCHAR(255),
		xray_study_guid VARCHAR(128),
		xray_study_date TIMESTAMPTZ,
		xray_images JSONB NOT NULL DEFAULT '[]'::jsonb,
		version_id INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_consultation_patient ON consultation (patient_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_consultation_status ON consultation (status)`,
}

// EnsureSchema creates the tables this service owns if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
