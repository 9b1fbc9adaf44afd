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
	"github.com/atinyakov/GophBank/internal/permission"
)

// BankRepository persists banks and their memberships.
//
// Writes that change bank structure take the version the caller read and
// fail with models.ErrStaleVersion when the stored version moved on. A
// successful write bumps the stored version.
type BankRepository interface {
	// CreateBank stores the bank, its top level role and the owner membership at once.
	CreateBank(ctx context.Context, bank *models.Bank, topRole *models.Role) error
	// GetBank returns a bank, soft-deleted or not, with members and role ids.
	GetBank(ctx context.Context, bankID string) (*models.Bank, error)
	// ListBanksForUser returns the user's banks in membership order, deleted ones included.
	ListBanksForUser(ctx context.Context, userID string) ([]models.Bank, error)
	// UpdateBank stores settings and soft-delete state guarded by bank.Version,
	// which is advanced on success.
	UpdateBank(ctx context.Context, bank *models.Bank) error
	// AddMember appends a membership. An existing membership yields models.ErrDuplicate.
	AddMember(ctx context.Context, bankID string, version int64, m models.Member) error
	// SetMemberRole moves one member to another role.
	SetMemberRole(ctx context.Context, bankID string, version int64, userID, roleID string) error
}

// UserDirectory resolves users referenced by memberships.
type UserDirectory interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

// BankService manages banks and memberships.
type BankService struct {
	access
	users     UserDirectory
	passwords PasswordRepository
	now       func() time.Time
}

// NewBankService constructs a BankService.
func NewBankService(banks BankRepository, roles RoleRepository, users UserDirectory, passwords PasswordRepository) *BankService {
	return &BankService{
		access:    access{banks: banks, roles: roles},
		users:     users,
		passwords: passwords,
		now:       storageNow,
	}
}

// CreateBank creates a bank owned by ownerID together with its top level role.
func (s *BankService) CreateBank(ctx context.Context, ownerID string, in models.BankInput) (*models.Bank, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Required("Bank name is required", "name")
	}
	icon := strings.TrimSpace(in.Icon)
	if icon == "" {
		icon = models.DefaultBankIcon
	}

	at := s.now()
	bankID := uuid.NewString()
	top := &models.Role{
		ID:          uuid.NewString(),
		Name:        models.TopLevelRoleName,
		BankID:      bankID,
		Permissions: models.FullPermissions(),
		CreatedAt:   at,
	}
	bank := &models.Bank{
		ID:          bankID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Icon:        icon,
		OwnerID:     ownerID,
		Members:     []models.Member{{UserID: ownerID, RoleID: top.ID}},
		Roles:       []string{top.ID},
		Version:     1,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	if err := s.banks.CreateBank(ctx, bank, top); err != nil {
		return nil, fmt.Errorf("create bank: %w", err)
	}
	return bank, nil
}

// InviteMember adds the user registered under email to the bank with roleID.
func (s *BankService) InviteMember(ctx context.Context, bankID, requesterID, email, roleID string) (*models.MemberDetails, error) {
	email = normalizeEmail(email)
	if missing := apperr.Missing("email", email, "roleId", roleID); len(missing) > 0 {
		return nil, apperr.Required("Please provide email and role", missing...)
	}

	bank, err := s.owned(ctx, bankID, requesterID, "invite users")
	if err != nil {
		return nil, err
	}
	if !bank.HasRole(roleID) {
		return nil, apperr.Validation("Role does not belong to this bank",
			apperr.FieldError{Field: "roleId", Detail: "must be a role of this bank"})
	}
	role, err := s.roles.GetRole(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("load role %s: %w", roleID, err)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if _, ok := bank.Member(user.ID); ok {
		return nil, apperr.New(apperr.ErrConflict, "User is already a member of this bank")
	}

	err = s.banks.AddMember(ctx, bank.ID, bank.Version, models.Member{UserID: user.ID, RoleID: roleID})
	if errors.Is(err, models.ErrDuplicate) {
		return nil, apperr.New(apperr.ErrConflict, "User is already a member of this bank")
	}
	if err := storeWriteError("add member", err); err != nil {
		return nil, err
	}
	return &models.MemberDetails{UserID: user.ID, Username: user.Username, Email: user.Email, Role: role}, nil
}

// SoftDeleteBank marks the bank deleted. Deleting a deleted bank is a no-op.
func (s *BankService) SoftDeleteBank(ctx context.Context, bankID, requesterID string) error {
	bank, err := s.ownedAny(ctx, bankID, requesterID, "delete the bank")
	if err != nil {
		return err
	}
	if bank.Deleted {
		return nil
	}

	at := s.now()
	bank.Deleted = true
	bank.DeletedAt = &at
	bank.UpdatedAt = at
	return storeWriteError("delete bank", s.banks.UpdateBank(ctx, bank))
}

// RestoreBank clears the soft-delete mark and returns the bank.
func (s *BankService) RestoreBank(ctx context.Context, bankID, requesterID string) (*models.Bank, error) {
	bank, err := s.ownedAny(ctx, bankID, requesterID, "restore the bank")
	if err != nil {
		return nil, err
	}
	if !bank.Deleted {
		return bank, nil
	}

	bank.Deleted = false
	bank.DeletedAt = nil
	bank.UpdatedAt = s.now()
	if err := storeWriteError("restore bank", s.banks.UpdateBank(ctx, bank)); err != nil {
		return nil, err
	}
	return bank, nil
}

// ListBanksForUser returns the live banks userID belongs to, in membership order.
func (s *BankService) ListBanksForUser(ctx context.Context, userID string) ([]models.Bank, error) {
	banks, err := s.banks.ListBanksForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list banks: %w", err)
	}
	live := make([]models.Bank, 0, len(banks))
	for _, b := range banks {
		if !b.Deleted {
			live = append(live, b)
		}
	}
	return live, nil
}

// GetBank returns the bank with members and roles resolved. A soft-deleted
// bank is only visible to its owner.
func (s *BankService) GetBank(ctx context.Context, bankID, requesterID string) (*models.BankDetails, error) {
	bank, err := s.bank(ctx, bankID)
	if err != nil {
		return nil, err
	}
	if bank.Deleted && !permission.IsOwner(bank, requesterID) {
		return nil, errBankNotFound
	}
	if _, ok := bank.Member(requesterID); !ok && !permission.IsOwner(bank, requesterID) {
		return nil, errNotMember
	}
	return s.details(ctx, bank)
}

func (s *BankService) details(ctx context.Context, bank *models.Bank) (*models.BankDetails, error) {
	roles, err := s.roles.ListRoles(ctx, bank.ID)
	if err != nil {
		return nil, fmt.Errorf("list roles of bank %s: %w", bank.ID, err)
	}
	byRole := make(map[string]*models.Role, len(roles))
	for i := range roles {
		byRole[roles[i].ID] = &roles[i]
	}

	ids := make([]string, 0, len(bank.Members))
	for _, m := range bank.Members {
		ids = append(ids, m.UserID)
	}
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load members of bank %s: %w", bank.ID, err)
	}
	byUser := make(map[string]models.User, len(users))
	for _, u := range users {
		byUser[u.ID] = u
	}

	members := make([]models.MemberDetails, 0, len(bank.Members))
	for _, m := range bank.Members {
		u := byUser[m.UserID]
		members = append(members, models.MemberDetails{
			UserID:   m.UserID,
			Username: u.Username,
			Email:    u.Email,
			Role:     byRole[m.RoleID],
		})
	}
	return &models.BankDetails{Bank: *bank, Members: members, Roles: roles}, nil
}

// UpdateBankSettings overwrites the non-empty fields of in.
func (s *BankService) UpdateBankSettings(ctx context.Context, bankID, requesterID string, in models.BankSettings) (*models.Bank, error) {
	bank, err := s.owned(ctx, bankID, requesterID, "update settings")
	if err != nil {
		return nil, err
	}

	if v := strings.TrimSpace(in.Name); v != "" {
		bank.Name = v
	}
	if v := strings.TrimSpace(in.Description); v != "" {
		bank.Description = v
	}
	if v := strings.TrimSpace(in.Icon); v != "" {
		bank.Icon = v
	}
	bank.UpdatedAt = s.now()
	if err := storeWriteError("update bank", s.banks.UpdateBank(ctx, bank)); err != nil {
		return nil, err
	}
	return bank, nil
}

// AssignRole moves targetUserID to roleID. The owner keeps the top level role.
func (s *BankService) AssignRole(ctx context.Context, bankID, requesterID, targetUserID, roleID string) error {
	if missing := apperr.Missing("userId", targetUserID, "roleId", roleID); len(missing) > 0 {
		return apperr.Required("Please provide user and role", missing...)
	}

	bank, err := s.owned(ctx, bankID, requesterID, "assign roles")
	if err != nil {
		return err
	}
	if _, ok := bank.Member(targetUserID); !ok {
		return apperr.New(apperr.ErrNotFound, "User is not a member of this bank")
	}
	if !bank.HasRole(roleID) {
		return apperr.Validation("Role does not belong to this bank",
			apperr.FieldError{Field: "roleId", Detail: "must be a role of this bank"})
	}
	if permission.IsOwner(bank, targetUserID) {
		return apperr.New(apperr.ErrInvalidOperation, "Cannot change the role of the bank owner")
	}

	return storeWriteError("assign role",
		s.banks.SetMemberRole(ctx, bank.ID, bank.Version, targetUserID, roleID))
}

// ClearAllPasswords soft-deletes every live entry of the bank under one
// shared stamp, which RestoreClearedPasswords accepts to undo the batch.
func (s *BankService) ClearAllPasswords(ctx context.Context, bankID, requesterID string) (models.ClearResult, error) {
	if err := s.canClear(ctx, bankID, requesterID); err != nil {
		return models.ClearResult{}, err
	}

	at := s.now()
	n, err := s.passwords.SoftDeleteBankPasswords(ctx, bankID, at)
	if err != nil {
		return models.ClearResult{}, fmt.Errorf("clear passwords of bank %s: %w", bankID, err)
	}
	return models.ClearResult{ClearedAt: at, Count: n}, nil
}

// RestoreClearedPasswords restores the entries cleared at clearedAt and
// returns how many came back.
func (s *BankService) RestoreClearedPasswords(ctx context.Context, bankID, requesterID string, clearedAt time.Time) (int64, error) {
	if clearedAt.IsZero() {
		return 0, apperr.Required("Please provide the clear timestamp", "clearedAt")
	}
	if err := s.canClear(ctx, bankID, requesterID); err != nil {
		return 0, err
	}

	n, err := s.passwords.RestoreBankPasswords(ctx, bankID, clearedAt.UTC().Truncate(time.Microsecond))
	if err != nil {
		return 0, fmt.Errorf("restore passwords of bank %s: %w", bankID, err)
	}
	return n, nil
}

// canClear allows the owner or any member whose role may delete entries.
func (s *BankService) canClear(ctx context.Context, bankID, requesterID string) error {
	bank, role, err := s.member(ctx, bankID, requesterID)
	if err != nil {
		return err
	}
	if !permission.IsOwner(bank, requesterID) && !permission.HasCapability(role, permission.CanDeletePasswords) {
		return errNoPermission
	}
	return nil
}
