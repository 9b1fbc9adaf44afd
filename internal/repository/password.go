package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/atinyakov/GophBank/internal/models"
)

const passwordColumns = `id, bank_id, title, username, password, category, created_by, notes, deleted, deleted_at, created_at, updated_at`

// PostgresPasswordRepository stores password entries. Deletion is soft.
type PostgresPasswordRepository struct {
	conn
}

// NewPostgresPasswordRepository creates a PostgresPasswordRepository using db.
func NewPostgresPasswordRepository(db *sql.DB, timeout time.Duration) *PostgresPasswordRepository {
	return &PostgresPasswordRepository{conn: newConn(db, timeout)}
}

// CreatePassword inserts p.
func (r *PostgresPasswordRepository) CreatePassword(ctx context.Context, p *models.Password) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO passwords (`+passwordColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.BankID, p.Title, p.Username, p.Password, p.Category, p.CreatedBy, p.Notes,
		p.Deleted, nullTime(p.DeletedAt), p.CreatedAt, p.UpdatedAt)
	return storeError("insert password", err)
}

// GetPassword returns an entry of the bank, deleted or not.
func (r *PostgresPasswordRepository) GetPassword(ctx context.Context, bankID, passwordID string) (*models.Password, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	p, err := scanPassword(r.DB.QueryRowContext(ctx,
		`SELECT `+passwordColumns+` FROM passwords WHERE id = $1 AND bank_id = $2`, passwordID, bankID))
	if err != nil {
		return nil, storeError("select password", err)
	}
	return p, nil
}

// ListPasswords returns live entries of the bank in creation order. A nil
// categories slice means every category.
func (r *PostgresPasswordRepository) ListPasswords(ctx context.Context, bankID string, categories []string) ([]models.Password, error) {
	if categories == nil {
		return r.list(ctx,
			`SELECT `+passwordColumns+` FROM passwords WHERE bank_id = $1 AND deleted = false ORDER BY position`,
			bankID)
	}
	return r.list(ctx,
		`SELECT `+passwordColumns+` FROM passwords WHERE bank_id = $1 AND deleted = false AND category = ANY($2) ORDER BY position`,
		bankID, pq.Array(categories))
}

// ListDeletedPasswords returns the soft-deleted entries of the bank.
func (r *PostgresPasswordRepository) ListDeletedPasswords(ctx context.Context, bankID string) ([]models.Password, error) {
	return r.list(ctx,
		`SELECT `+passwordColumns+` FROM passwords WHERE bank_id = $1 AND deleted = true ORDER BY position`,
		bankID)
}

func (r *PostgresPasswordRepository) list(ctx context.Context, query string, args ...any) ([]models.Password, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("select passwords", err)
	}
	defer rows.Close()

	passwords := []models.Password{}
	for rows.Next() {
		p, err := scanPassword(rows)
		if err != nil {
			return nil, fmt.Errorf("scan password: %w", err)
		}
		passwords = append(passwords, *p)
	}
	return passwords, rows.Err()
}

// UpdatePassword stores the editable fields of a live entry.
func (r *PostgresPasswordRepository) UpdatePassword(ctx context.Context, p *models.Password) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.DB.ExecContext(ctx, `
		UPDATE passwords
		   SET title = $3, username = $4, password = $5, category = $6, notes = $7, updated_at = $8
		 WHERE id = $1 AND bank_id = $2 AND deleted = false`,
		p.ID, p.BankID, p.Title, p.Username, p.Password, p.Category, p.Notes, p.UpdatedAt)
	if err != nil {
		return storeError("update password", err)
	}
	return expectRows(res)
}

// SoftDeletePassword marks a live entry deleted at at.
func (r *PostgresPasswordRepository) SoftDeletePassword(ctx context.Context, bankID, passwordID string, at time.Time) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.DB.ExecContext(ctx,
		`UPDATE passwords SET deleted = true, deleted_at = $3 WHERE id = $1 AND bank_id = $2 AND deleted = false`,
		passwordID, bankID, at)
	if err != nil {
		return storeError("delete password", err)
	}
	return expectRows(res)
}

// RestorePassword clears the deletion mark of an entry.
func (r *PostgresPasswordRepository) RestorePassword(ctx context.Context, bankID, passwordID string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.DB.ExecContext(ctx,
		`UPDATE passwords SET deleted = false, deleted_at = NULL WHERE id = $1 AND bank_id = $2 AND deleted = true`,
		passwordID, bankID)
	if err != nil {
		return storeError("restore password", err)
	}
	return expectRows(res)
}

// SoftDeleteBankPasswords marks every live entry of the bank deleted at at.
func (r *PostgresPasswordRepository) SoftDeleteBankPasswords(ctx context.Context, bankID string, at time.Time) (int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.DB.ExecContext(ctx,
		`UPDATE passwords SET deleted = true, deleted_at = $2 WHERE bank_id = $1 AND deleted = false`,
		bankID, at)
	if err != nil {
		return 0, storeError("clear passwords", err)
	}
	return res.RowsAffected()
}

// RestoreBankPasswords restores the entries of the bank deleted exactly at deletedAt.
func (r *PostgresPasswordRepository) RestoreBankPasswords(ctx context.Context, bankID string, deletedAt time.Time) (int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.DB.ExecContext(ctx,
		`UPDATE passwords SET deleted = false, deleted_at = NULL WHERE bank_id = $1 AND deleted = true AND deleted_at = $2`,
		bankID, deletedAt)
	if err != nil {
		return 0, storeError("restore cleared passwords", err)
	}
	return res.RowsAffected()
}

func scanPassword(s scanner) (*models.Password, error) {
	var (
		p         models.Password
		deletedAt sql.NullTime
	)
	err := s.Scan(&p.ID, &p.BankID, &p.Title, &p.Username, &p.Password, &p.Category,
		&p.CreatedBy, &p.Notes, &p.Deleted, &deletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.DeletedAt = timePtr(deletedAt)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}
