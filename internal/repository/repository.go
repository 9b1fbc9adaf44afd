// Package repository provides PostgreSQL implementations of the GophBank
// repositories. Every call runs under a per-operation timeout.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/atinyakov/GophBank/internal/models"
)

// DefaultTimeout bounds a single repository call when none is configured.
const DefaultTimeout = 5 * time.Second

// uniqueViolation is the PostgreSQL error code for unique_violation.
const uniqueViolation = "23505"

// conn is the shared part of every Postgres repository.
type conn struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
	// Timeout bounds each call.
	Timeout time.Duration
}

func newConn(db *sql.DB, timeout time.Duration) conn {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return conn{DB: db, Timeout: timeout}
}

func (c conn) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.Timeout)
}

// inTx runs fn in a transaction committed only when fn succeeds.
func (c conn) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// storeError maps driver errors onto the storage sentinels.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w (%s)", op, models.ErrDuplicate, pqErr.Constraint)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// expectRows returns models.ErrNotFound when res touched no row.
func expectRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// bumpVersion advances the bank version inside tx when it still equals
// version. A missing bank yields models.ErrNotFound and a moved version
// models.ErrStaleVersion.
func bumpVersion(ctx context.Context, tx *sql.Tx, bankID string, version int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE banks SET version = version + 1 WHERE id = $1 AND version = $2`,
		bankID, version)
	if err != nil {
		return fmt.Errorf("bump bank version: %w", err)
	}
	if err := expectRows(res); !errors.Is(err, models.ErrNotFound) {
		return err
	}
	return staleOrMissing(ctx, tx, bankID)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// staleOrMissing tells a lost version race from a missing bank.
func staleOrMissing(ctx context.Context, q queryRower, bankID string) error {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM banks WHERE id = $1)`, bankID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check bank: %w", err)
	}
	if !exists {
		return models.ErrNotFound
	}
	return models.ErrStaleVersion
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
