package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return &DB{Client: db}, db.PingContext(context.Background())
}

// Migrate creates the relational tables when they do not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT UNIQUE NOT NULL,
		name          TEXT NOT NULL,
		role          TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		grade         INT,
		class         TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS permission_requests (
		id              TEXT PRIMARY KEY,
		requester_id    TEXT NOT NULL REFERENCES users(id),
		requester_name  TEXT NOT NULL DEFAULT '',
		requester_email TEXT NOT NULL DEFAULT '',
		target_grade    INT NOT NULL,
		target_class    TEXT NOT NULL,
		target_date     TEXT NOT NULL,
		reason          TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL DEFAULT 'pending',
		requested_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		responded_at    TIMESTAMPTZ,
		responder_id    TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_permission_requester ON permission_requests(requester_id);
	CREATE INDEX IF NOT EXISTS idx_permission_status    ON permission_requests(status);
	`
	_, err := d.Client.ExecContext(ctx, schema)
	return err
}

// Healthy verifies database connectivity.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
