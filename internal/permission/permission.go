// Package permission evaluates what a bank member may do.
//
// Evaluation is pure: callers load the bank and its roles first and pass them
// in. IsOwner gates bank management and role capabilities gate password
// entries. Ownership grants no implicit capability.
package permission

import (
	"errors"

	"github.com/atinyakov/GophBank/internal/models"
)

// Capability names one boolean flag of a role permission set.
type Capability string

const (
	CanViewPasswords     Capability = "canViewPasswords"
	CanAddPasswords      Capability = "canAddPasswords"
	CanEditPasswords     Capability = "canEditPasswords"
	CanDeletePasswords   Capability = "canDeletePasswords"
	CanManageUsers       Capability = "canManageUsers"
	CanManageRoles       Capability = "canManageRoles"
	CanManageSettings    Capability = "canManageSettings"
	CanChangePermissions Capability = "canChangePermissions"
	CanViewAll           Capability = "canViewAll"
)

// ErrNotAMember is returned by EffectiveRole for users outside the bank.
var ErrNotAMember = errors.New("permission: not a member of the bank")

// HasCapability returns the role's stored flag for c. A nil role or an
// unknown capability grants nothing.
func HasCapability(role *models.Role, c Capability) bool {
	if role == nil {
		return false
	}
	p := role.Permissions
	switch c {
	case CanViewPasswords:
		return p.CanViewPasswords
	case CanAddPasswords:
		return p.CanAddPasswords
	case CanEditPasswords:
		return p.CanEditPasswords
	case CanDeletePasswords:
		return p.CanDeletePasswords
	case CanManageUsers:
		return p.CanManageUsers
	case CanManageRoles:
		return p.CanManageRoles
	case CanManageSettings:
		return p.CanManageSettings
	case CanChangePermissions:
		return p.CanChangePermissions
	case CanViewAll:
		return p.CanViewAll
	default:
		return false
	}
}

// IsOwner reports whether userID owns the bank.
func IsOwner(bank *models.Bank, userID string) bool {
	return bank != nil && userID != "" && bank.OwnerID == userID
}

// EffectiveRole resolves the role userID holds in bank. roles are the bank's
// loaded role records. A member whose role is missing from roles gets a nil
// role, which grants no capability.
func EffectiveRole(bank *models.Bank, roles []models.Role, userID string) (*models.Role, error) {
	if bank == nil {
		return nil, ErrNotAMember
	}
	member, ok := bank.Member(userID)
	if !ok {
		return nil, ErrNotAMember
	}
	for i := range roles {
		if roles[i].ID == member.RoleID {
			role := roles[i]
			return &role, nil
		}
	}
	return nil, nil
}
