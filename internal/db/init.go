// Package db opens the PostgreSQL store, creates its schema and runs the
// soft-delete retention cleaner.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS banks (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    icon        TEXT NOT NULL,
    owner_id    TEXT NOT NULL REFERENCES users(id),
    deleted     BOOLEAN NOT NULL DEFAULT FALSE,
    deleted_at  TIMESTAMPTZ,
    version     BIGINT NOT NULL DEFAULT 1,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS roles (
    id                     TEXT PRIMARY KEY,
    position               BIGSERIAL,
    bank_id                TEXT NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
    name                   TEXT NOT NULL,
    can_view_passwords     BOOLEAN NOT NULL DEFAULT FALSE,
    can_add_passwords      BOOLEAN NOT NULL DEFAULT FALSE,
    can_edit_passwords     BOOLEAN NOT NULL DEFAULT FALSE,
    can_delete_passwords   BOOLEAN NOT NULL DEFAULT FALSE,
    can_manage_users       BOOLEAN NOT NULL DEFAULT FALSE,
    can_manage_roles       BOOLEAN NOT NULL DEFAULT FALSE,
    can_manage_settings    BOOLEAN NOT NULL DEFAULT FALSE,
    can_change_permissions BOOLEAN NOT NULL DEFAULT FALSE,
    can_view_all           BOOLEAN NOT NULL DEFAULT FALSE,
    view_categories        TEXT[] NOT NULL DEFAULT '{}',
    created_at             TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS bank_members (
    bank_id  TEXT NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
    user_id  TEXT NOT NULL REFERENCES users(id),
    role_id  TEXT NOT NULL REFERENCES roles(id),
    position BIGSERIAL,
    PRIMARY KEY (bank_id, user_id)
);

CREATE INDEX IF NOT EXISTS bank_members_user_idx ON bank_members (user_id, position);

CREATE TABLE IF NOT EXISTS passwords (
    id         TEXT PRIMARY KEY,
    position   BIGSERIAL,
    bank_id    TEXT NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
    title      TEXT NOT NULL,
    username   TEXT NOT NULL,
    password   TEXT NOT NULL,
    category   TEXT NOT NULL,
    created_by TEXT NOT NULL REFERENCES users(id),
    notes      TEXT NOT NULL DEFAULT '',
    deleted    BOOLEAN NOT NULL DEFAULT FALSE,
    deleted_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS passwords_bank_idx ON passwords (bank_id, deleted, position);
`

// InitPostgres opens the database at dsn, checks connectivity and applies
// the schema.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}
