// Package models defines the core data structures for users, banks, roles
// and the password entries stored inside banks.
package models

import "time"

// User represents an application user with credentials.
type User struct {
	// ID is the unique identifier for the user.
	ID string `json:"id"`
	// Username is the unique display name chosen by the user.
	Username string `json:"username"`
	// Email is the unique address used to log in and to be invited.
	Email string `json:"email"`
	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string `json:"-"`
	// BankMemberships lists the banks the user belongs to, in join order.
	// It is derived from bank membership and filled only where needed.
	BankMemberships []BankMembership `json:"banks,omitempty"`
	// CreatedAt is the registration time.
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is the time of the last profile or password change.
	UpdatedAt time.Time `json:"updatedAt"`
}

// BankMembership is the user-side view of a membership.
type BankMembership struct {
	BankID string `json:"bankId"`
	RoleID string `json:"roleId"`
}
