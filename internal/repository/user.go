package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/atinyakov/GophBank/internal/models"
)

const userColumns = `id, username, email, password_hash, created_at, updated_at`

// PostgresUserRepository stores users and reads their memberships.
type PostgresUserRepository struct {
	conn
}

// NewPostgresUserRepository creates a PostgresUserRepository using db.
// A non-positive timeout selects DefaultTimeout.
func NewPostgresUserRepository(db *sql.DB, timeout time.Duration) *PostgresUserRepository {
	return &PostgresUserRepository{conn: newConn(db, timeout)}
}

// CreateUser inserts u. A taken username or email yields models.ErrDuplicate.
func (r *PostgresUserRepository) CreateUser(ctx context.Context, u *models.User) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	return storeError("insert user", err)
}

// GetUserByID returns the user with id.
func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, "id", id)
}

// GetUserByEmail returns the user registered under email.
func (r *PostgresUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, "email", email)
}

// GetUserByUsername returns the user named username.
func (r *PostgresUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getUser(ctx, "username", username)
}

// getUser looks a user up by one unique column. column is never user input.
func (r *PostgresUserRepository) getUser(ctx context.Context, column, value string) (*models.User, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	row := r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value)
	u, err := scanUser(row)
	if err != nil {
		return nil, storeError("select user", err)
	}
	return u, nil
}

// GetUsersByIDs returns the existing users among ids.
func (r *PostgresUserRepository) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, storeError("select users", err)
	}
	defer rows.Close()

	users := make([]models.User, 0, len(ids))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUserProfile stores the username, email and update time of u.
func (r *PostgresUserRepository) UpdateUserProfile(ctx context.Context, u *models.User) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET username = $2, email = $3, updated_at = $4 WHERE id = $1`,
		u.ID, u.Username, u.Email, u.UpdatedAt)
	if err != nil {
		return storeError("update user", err)
	}
	return expectRows(res)
}

// UpdatePasswordHash replaces the stored password hash.
func (r *PostgresUserRepository) UpdatePasswordHash(ctx context.Context, userID, hash string, at time.Time) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		userID, hash, at)
	if err != nil {
		return storeError("update password hash", err)
	}
	return expectRows(res)
}

// ListMemberships returns the memberships of userID in join order.
func (r *PostgresUserRepository) ListMemberships(ctx context.Context, userID string) ([]models.BankMembership, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := r.DB.QueryContext(ctx,
		`SELECT bank_id, role_id FROM bank_members WHERE user_id = $1 ORDER BY position`, userID)
	if err != nil {
		return nil, storeError("select memberships", err)
	}
	defer rows.Close()

	memberships := []models.BankMembership{}
	for rows.Next() {
		var m models.BankMembership
		if err := rows.Scan(&m.BankID, &m.RoleID); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.User, error) {
	var u models.User
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}
