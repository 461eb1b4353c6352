// Package postgres owns database connectivity and the service schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS visa_products (
	id            UUID PRIMARY KEY,
	name          TEXT NOT NULL,
	fields        JSONB NOT NULL DEFAULT '[]',
	max_field_id  BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS applications (
	id                        UUID PRIMARY KEY,
	number                    TEXT NOT NULL,
	product_id                UUID NOT NULL,
	customer_id               UUID NOT NULL,
	email                     TEXT NOT NULL DEFAULT '',
	status                    TEXT NOT NULL,
	adhoc_fields              JSONB NOT NULL DEFAULT '[]',
	min_adhoc_field_id        BIGINT NOT NULL DEFAULT 0,
	requests                  JSONB NOT NULL DEFAULT '[]',
	resubmission_target       TEXT,
	resubmission_traveler_id  BIGINT,
	requested_field_ids       JSONB NOT NULL DEFAULT '[]',
	responses                 JSONB NOT NULL DEFAULT '{}',
	passport                  JSONB NOT NULL DEFAULT '{}',
	status_history            JSONB NOT NULL DEFAULT '[]',
	created_at                TIMESTAMPTZ NOT NULL,
	updated_at                TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS travelers (
	application_id  UUID NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
	id              BIGINT NOT NULL,
	full_name       TEXT NOT NULL DEFAULT '',
	responses       JSONB NOT NULL DEFAULT '{}',
	passport        JSONB NOT NULL DEFAULT '{}',
	PRIMARY KEY (application_id, id)
);`

// Connect opens and verifies a database handle.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the service tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
