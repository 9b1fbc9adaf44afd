package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atinyakov/GophBank/internal/apperr"
	"github.com/atinyakov/GophBank/internal/models"
)

// RoleRepository persists bank roles.
type RoleRepository interface {
	// CreateRole stores role and appends it to its bank, guarded by bankVersion.
	CreateRole(ctx context.Context, bankVersion int64, role *models.Role) error
	// GetRole returns models.ErrNotFound for unknown ids.
	GetRole(ctx context.Context, roleID string) (*models.Role, error)
	// ListRoles returns the bank's roles in creation order.
	ListRoles(ctx context.Context, bankID string) ([]models.Role, error)
	// UpdateRolePermissions replaces the whole permission set of a role.
	UpdateRolePermissions(ctx context.Context, roleID string, p models.Permissions) error
	// DeleteRole moves every member holding roleID to fallbackRoleID and
	// removes the role, all in one atomic step guarded by bankVersion.
	DeleteRole(ctx context.Context, bankID string, bankVersion int64, roleID, fallbackRoleID string) error
}

var (
	errRoleNotFound = apperr.New(apperr.ErrNotFound, "Role not found")
	errLastRole     = apperr.New(apperr.ErrInvalidOperation, "Cannot delete the last role of a bank")
)

// RoleService manages the roles of a bank.
type RoleService struct {
	access
	now func() time.Time
}

// NewRoleService constructs a RoleService.
func NewRoleService(banks BankRepository, roles RoleRepository) *RoleService {
	return &RoleService{access: access{banks: banks, roles: roles}, now: storageNow}
}

// CreateRole adds a role to the bank.
func (s *RoleService) CreateRole(ctx context.Context, bankID, requesterID, name string, p models.Permissions) (*models.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Required("Role name is required", "name")
	}
	bank, err := s.owned(ctx, bankID, requesterID, "manage roles")
	if err != nil {
		return nil, err
	}

	role := &models.Role{
		ID:          uuid.NewString(),
		Name:        name,
		BankID:      bank.ID,
		Permissions: normalizePermissions(p),
		CreatedAt:   s.now(),
	}
	if err := storeWriteError("create role", s.roles.CreateRole(ctx, bank.Version, role)); err != nil {
		return nil, err
	}
	return role, nil
}

// UpdateRole overwrites the permission set of a role. Fields are not merged.
func (s *RoleService) UpdateRole(ctx context.Context, bankID, roleID, requesterID string, p models.Permissions) (*models.Role, error) {
	bank, err := s.owned(ctx, bankID, requesterID, "manage roles")
	if err != nil {
		return nil, err
	}
	if !bank.HasRole(roleID) {
		return nil, errRoleNotFound
	}

	role, err := s.roles.GetRole(ctx, roleID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, errRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load role %s: %w", roleID, err)
	}

	role.Permissions = normalizePermissions(p)
	err = s.roles.UpdateRolePermissions(ctx, role.ID, role.Permissions)
	if errors.Is(err, models.ErrNotFound) {
		return nil, errRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update role %s: %w", roleID, err)
	}
	return role, nil
}

// DeleteRole removes a role and returns the id of the role its members were
// moved to: the first remaining role in creation order. The last role of a
// bank cannot be deleted.
func (s *RoleService) DeleteRole(ctx context.Context, bankID, roleID, requesterID string) (string, error) {
	bank, err := s.owned(ctx, bankID, requesterID, "manage roles")
	if err != nil {
		return "", err
	}
	if !bank.HasRole(roleID) {
		return "", errRoleNotFound
	}
	if len(bank.Roles) <= 1 {
		return "", errLastRole
	}

	var fallback string
	for _, id := range bank.Roles {
		if id != roleID {
			fallback = id
			break
		}
	}

	err = s.roles.DeleteRole(ctx, bank.ID, bank.Version, roleID, fallback)
	if err := storeWriteError("delete role", err); err != nil {
		return "", err
	}
	return fallback, nil
}

// ListRoles returns the bank's roles to any member.
func (s *RoleService) ListRoles(ctx context.Context, bankID, requesterID string) ([]models.Role, error) {
	bank, _, err := s.member(ctx, bankID, requesterID)
	if err != nil {
		return nil, err
	}
	roles, err := s.roles.ListRoles(ctx, bank.ID)
	if err != nil {
		return nil, fmt.Errorf("list roles of bank %s: %w", bank.ID, err)
	}
	return roles, nil
}

func normalizePermissions(p models.Permissions) models.Permissions {
	if p.ViewCategories == nil {
		p.ViewCategories = []string{}
	}
	return p
}
