package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/GophBank/internal/models"
)

const bankColumns = `id, name, description, icon, owner_id, deleted, deleted_at, version, created_at, updated_at`

// PostgresBankRepository stores banks and their memberships.
type PostgresBankRepository struct {
	conn
}

// NewPostgresBankRepository creates a PostgresBankRepository using db.
func NewPostgresBankRepository(db *sql.DB, timeout time.Duration) *PostgresBankRepository {
	return &PostgresBankRepository{conn: newConn(db, timeout)}
}

// CreateBank inserts the bank, its top level role and the owner membership
// in one transaction.
func (r *PostgresBankRepository) CreateBank(ctx context.Context, bank *models.Bank, topRole *models.Role) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	return r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO banks (`+bankColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			bank.ID, bank.Name, bank.Description, bank.Icon, bank.OwnerID,
			bank.Deleted, nullTime(bank.DeletedAt), bank.Version, bank.CreatedAt, bank.UpdatedAt)
		if err != nil {
			return storeError("insert bank", err)
		}
		if err := insertRole(ctx, tx, topRole); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO bank_members (bank_id, user_id, role_id) VALUES ($1, $2, $3)`,
			bank.ID, bank.OwnerID, topRole.ID)
		return storeError("insert owner membership", err)
	})
}

// GetBank returns the bank with id, deleted or not.
func (r *PostgresBankRepository) GetBank(ctx context.Context, bankID string) (*models.Bank, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	bank, err := scanBank(r.DB.QueryRowContext(ctx,
		`SELECT `+bankColumns+` FROM banks WHERE id = $1`, bankID))
	if err != nil {
		return nil, storeError("select bank", err)
	}
	if err := r.loadStructure(ctx, bank); err != nil {
		return nil, err
	}
	return bank, nil
}

// ListBanksForUser returns the banks userID belongs to in membership order.
func (r *PostgresBankRepository) ListBanksForUser(ctx context.Context, userID string) ([]models.Bank, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := r.DB.QueryContext(ctx, `
		SELECT b.id, b.name, b.description, b.icon, b.owner_id, b.deleted, b.deleted_at, b.version, b.created_at, b.updated_at
		  FROM banks b
		  JOIN bank_members m ON m.bank_id = b.id
		 WHERE m.user_id = $1
		 ORDER BY m.position`, userID)
	if err != nil {
		return nil, storeError("select banks", err)
	}
	var banks []models.Bank
	for rows.Next() {
		bank, err := scanBank(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan bank: %w", err)
		}
		banks = append(banks, *bank)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate banks: %w", err)
	}
	_ = rows.Close()

	for i := range banks {
		if err := r.loadStructure(ctx, &banks[i]); err != nil {
			return nil, err
		}
	}
	if banks == nil {
		banks = []models.Bank{}
	}
	return banks, nil
}

// loadStructure fills the member list and role ids of bank.
func (r *PostgresBankRepository) loadStructure(ctx context.Context, bank *models.Bank) error {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT user_id, role_id FROM bank_members WHERE bank_id = $1 ORDER BY position`, bank.ID)
	if err != nil {
		return storeError("select members", err)
	}
	bank.Members = []models.Member{}
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.UserID, &m.RoleID); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan member: %w", err)
		}
		bank.Members = append(bank.Members, m)
	}
	_ = rows.Close()

	rows, err = r.DB.QueryContext(ctx,
		`SELECT id FROM roles WHERE bank_id = $1 ORDER BY position`, bank.ID)
	if err != nil {
		return storeError("select role ids", err)
	}
	defer rows.Close()
	bank.Roles = []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan role id: %w", err)
		}
		bank.Roles = append(bank.Roles, id)
	}
	return rows.Err()
}

// UpdateBank stores settings and soft-delete state when bank.Version is
// still current, then advances bank.Version.
func (r *PostgresBankRepository) UpdateBank(ctx context.Context, bank *models.Bank) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var version int64
	err := r.DB.QueryRowContext(ctx, `
		UPDATE banks
		   SET name = $3, description = $4, icon = $5, deleted = $6, deleted_at = $7,
		       updated_at = $8, version = version + 1
		 WHERE id = $1 AND version = $2
		RETURNING version`,
		bank.ID, bank.Version, bank.Name, bank.Description, bank.Icon,
		bank.Deleted, nullTime(bank.DeletedAt), bank.UpdatedAt,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return staleOrMissing(ctx, r.DB, bank.ID)
	}
	if err != nil {
		return storeError("update bank", err)
	}
	bank.Version = version
	return nil
}

// AddMember appends a membership guarded by the bank version.
func (r *PostgresBankRepository) AddMember(ctx context.Context, bankID string, version int64, m models.Member) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := bumpVersion(ctx, tx, bankID, version); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO bank_members (bank_id, user_id, role_id) VALUES ($1, $2, $3)`,
			bankID, m.UserID, m.RoleID)
		return storeError("insert membership", err)
	})
}

// SetMemberRole moves userID to roleID guarded by the bank version.
func (r *PostgresBankRepository) SetMemberRole(ctx context.Context, bankID string, version int64, userID, roleID string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := bumpVersion(ctx, tx, bankID, version); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE bank_members SET role_id = $3 WHERE bank_id = $1 AND user_id = $2`,
			bankID, userID, roleID)
		if err != nil {
			return storeError("update membership", err)
		}
		return expectRows(res)
	})
}

func scanBank(s scanner) (*models.Bank, error) {
	var (
		b         models.Bank
		deletedAt sql.NullTime
	)
	err := s.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &b.OwnerID,
		&b.Deleted, &deletedAt, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.DeletedAt = timePtr(deletedAt)
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}
