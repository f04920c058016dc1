package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute
)

// NewPostgresConnection creates and returns a new PostgreSQL database connection.
// It also pings the database to ensure connectivity.
func NewPostgresConnection(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err = db.Ping(); err != nil {
		db.Close() // Close the connection if ping fails
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS schedule_entries (
    id                    VARCHAR(64) PRIMARY KEY,
    kind                  VARCHAR(16) NOT NULL,
    tenant_id             VARCHAR(64) NOT NULL,
    property_id           VARCHAR(64) NOT NULL DEFAULT '',
    amount                BIGINT NOT NULL CHECK (amount > 0),
    payment_method        VARCHAR(32) NOT NULL,
    phone_number          VARCHAR(20) NOT NULL DEFAULT '',
    timezone              VARCHAR(64) NOT NULL DEFAULT 'UTC',
    due_at                TIMESTAMPTZ NOT NULL,
    status                VARCHAR(16) NOT NULL,
    reminder_sent         BOOLEAN NOT NULL DEFAULT FALSE,
    enabled               BOOLEAN NOT NULL DEFAULT TRUE,
    day_of_month          SMALLINT,
    scheduled_date        TIMESTAMPTZ,
    transaction_reference VARCHAR(128) NOT NULL DEFAULT '',
    processed_at          TIMESTAMPTZ,
    failure_reason        TEXT NOT NULL DEFAULT '',
    failed_at             TIMESTAMPTZ,
    created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS schedule_entries_kind_status_idx ON schedule_entries (kind, status);
CREATE INDEX IF NOT EXISTS schedule_entries_tenant_idx ON schedule_entries (tenant_id);

CREATE TABLE IF NOT EXISTS payment_attempts (
    id                    VARCHAR(64) PRIMARY KEY,
    entry_id              VARCHAR(64) NOT NULL REFERENCES schedule_entries (id),
    tenant_id             VARCHAR(64) NOT NULL,
    due_at                TIMESTAMPTZ NOT NULL,
    amount                BIGINT NOT NULL,
    payment_method        VARCHAR(32) NOT NULL,
    status                VARCHAR(16) NOT NULL,
    transaction_reference VARCHAR(128) NOT NULL DEFAULT '',
    reason                TEXT NOT NULL DEFAULT '',
    attempted_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS payment_attempts_entry_idx ON payment_attempts (entry_id, attempted_at);

CREATE TABLE IF NOT EXISTS notifications (
    id          VARCHAR(128) PRIMARY KEY,
    tenant_id   VARCHAR(64) NOT NULL,
    type        VARCHAR(64) NOT NULL,
    title       TEXT NOT NULL,
    message     TEXT NOT NULL,
    priority    VARCHAR(16) NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    is_read     BOOLEAN NOT NULL DEFAULT FALSE,
    action_url  TEXT NOT NULL DEFAULT '',
    action_text TEXT NOT NULL DEFAULT '',
    data        JSONB
);
CREATE INDEX IF NOT EXISTS notifications_tenant_idx ON notifications (tenant_id, created_at DESC);
`

// EnsureSchema creates the engine tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
