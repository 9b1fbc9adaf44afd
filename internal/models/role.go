package models

import "time"

// TopLevelRoleName is the name of the role created together with a bank.
const TopLevelRoleName = "Top Level"

// Permissions is the permission set attached to a role.
type Permissions struct {
	CanViewPasswords     bool `json:"canViewPasswords"`
	CanAddPasswords      bool `json:"canAddPasswords"`
	CanEditPasswords     bool `json:"canEditPasswords"`
	CanDeletePasswords   bool `json:"canDeletePasswords"`
	CanManageUsers       bool `json:"canManageUsers"`
	CanManageRoles       bool `json:"canManageRoles"`
	CanManageSettings    bool `json:"canManageSettings"`
	CanChangePermissions bool `json:"canChangePermissions"`
	// CanViewAll makes ViewCategories irrelevant.
	CanViewAll bool `json:"canViewAll"`
	// ViewCategories limits visible entries when CanViewAll is false.
	// An empty list grants no category at all.
	ViewCategories []string `json:"viewCategories"`
}

// FullPermissions returns the permission set of the default top level role.
func FullPermissions() Permissions {
	return Permissions{
		CanViewPasswords:     true,
		CanAddPasswords:      true,
		CanEditPasswords:     true,
		CanDeletePasswords:   true,
		CanManageUsers:       true,
		CanManageRoles:       true,
		CanManageSettings:    true,
		CanChangePermissions: true,
		CanViewAll:           true,
		ViewCategories:       []string{},
	}
}

// Role is a named permission set scoped to exactly one bank.
type Role struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	BankID      string      `json:"bankId"`
	Permissions Permissions `json:"permissions"`
	CreatedAt   time.Time   `json:"createdAt"`
}
