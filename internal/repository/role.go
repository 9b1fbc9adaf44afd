package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/atinyakov/GophBank/internal/models"
)

const roleColumns = `id, bank_id, name,
	can_view_passwords, can_add_passwords, can_edit_passwords, can_delete_passwords,
	can_manage_users, can_manage_roles, can_manage_settings, can_change_permissions,
	can_view_all, view_categories, created_at`

// PostgresRoleRepository stores bank roles.
type PostgresRoleRepository struct {
	conn
}

// NewPostgresRoleRepository creates a PostgresRoleRepository using db.
func NewPostgresRoleRepository(db *sql.DB, timeout time.Duration) *PostgresRoleRepository {
	return &PostgresRoleRepository{conn: newConn(db, timeout)}
}

// CreateRole inserts role guarded by the version of its bank.
func (r *PostgresRoleRepository) CreateRole(ctx context.Context, bankVersion int64, role *models.Role) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := bumpVersion(ctx, tx, role.BankID, bankVersion); err != nil {
			return err
		}
		return insertRole(ctx, tx, role)
	})
}

func insertRole(ctx context.Context, tx *sql.Tx, role *models.Role) error {
	p := role.Permissions
	categories := p.ViewCategories
	if categories == nil {
		categories = []string{}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO roles (`+roleColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		role.ID, role.BankID, role.Name,
		p.CanViewPasswords, p.CanAddPasswords, p.CanEditPasswords, p.CanDeletePasswords,
		p.CanManageUsers, p.CanManageRoles, p.CanManageSettings, p.CanChangePermissions,
		p.CanViewAll, pq.Array(categories), role.CreatedAt)
	return storeError("insert role", err)
}

// GetRole returns the role with id.
func (r *PostgresRoleRepository) GetRole(ctx context.Context, roleID string) (*models.Role, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	role, err := scanRole(r.DB.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = $1`, roleID))
	if err != nil {
		return nil, storeError("select role", err)
	}
	return role, nil
}

// ListRoles returns the bank's roles in creation order.
func (r *PostgresRoleRepository) ListRoles(ctx context.Context, bankID string) ([]models.Role, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE bank_id = $1 ORDER BY position`, bankID)
	if err != nil {
		return nil, storeError("select roles", err)
	}
	defer rows.Close()

	roles := []models.Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

// UpdateRolePermissions replaces the whole permission set of a role.
func (r *PostgresRoleRepository) UpdateRolePermissions(ctx context.Context, roleID string, p models.Permissions) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	categories := p.ViewCategories
	if categories == nil {
		categories = []string{}
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE roles
		   SET can_view_passwords = $2, can_add_passwords = $3, can_edit_passwords = $4,
		       can_delete_passwords = $5, can_manage_users = $6, can_manage_roles = $7,
		       can_manage_settings = $8, can_change_permissions = $9, can_view_all = $10,
		       view_categories = $11
		 WHERE id = $1`,
		roleID,
		p.CanViewPasswords, p.CanAddPasswords, p.CanEditPasswords,
		p.CanDeletePasswords, p.CanManageUsers, p.CanManageRoles,
		p.CanManageSettings, p.CanChangePermissions, p.CanViewAll,
		pq.Array(categories))
	if err != nil {
		return storeError("update role", err)
	}
	return expectRows(res)
}

// DeleteRole moves the members of roleID to fallbackRoleID and deletes the
// role in one transaction guarded by the bank version.
func (r *PostgresRoleRepository) DeleteRole(ctx context.Context, bankID string, bankVersion int64, roleID, fallbackRoleID string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := bumpVersion(ctx, tx, bankID, bankVersion); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE bank_members SET role_id = $3 WHERE bank_id = $1 AND role_id = $2`,
			bankID, roleID, fallbackRoleID)
		if err != nil {
			return storeError("reassign members", err)
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM roles WHERE id = $1 AND bank_id = $2`, roleID, bankID)
		if err != nil {
			return storeError("delete role", err)
		}
		return expectRows(res)
	})
}

func scanRole(s scanner) (*models.Role, error) {
	var role models.Role
	p := &role.Permissions
	err := s.Scan(&role.ID, &role.BankID, &role.Name,
		&p.CanViewPasswords, &p.CanAddPasswords, &p.CanEditPasswords, &p.CanDeletePasswords,
		&p.CanManageUsers, &p.CanManageRoles, &p.CanManageSettings, &p.CanChangePermissions,
		&p.CanViewAll, pq.Array(&p.ViewCategories), &role.CreatedAt)
	if err != nil {
		return nil, err
	}
	if p.ViewCategories == nil {
		p.ViewCategories = []string{}
	}
	role.CreatedAt = role.CreatedAt.UTC()
	return &role, nil
}
