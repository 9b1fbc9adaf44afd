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

// PasswordRepository persists password entries. Entries are soft-deleted;
// list and update operations only see live ones.
type PasswordRepository interface {
	CreatePassword(ctx context.Context, p *models.Password) error
	// GetPassword returns an entry of the bank, deleted or not.
	GetPassword(ctx context.Context, bankID, passwordID string) (*models.Password, error)
	// ListPasswords returns live entries in creation order. A nil categories
	// slice means every category.
	ListPasswords(ctx context.Context, bankID string, categories []string) ([]models.Password, error)
	// ListDeletedPasswords returns the soft-deleted entries of the bank.
	ListDeletedPasswords(ctx context.Context, bankID string) ([]models.Password, error)
	// UpdatePassword stores the editable fields of a live entry.
	UpdatePassword(ctx context.Context, p *models.Password) error
	// SoftDeletePassword marks a live entry deleted.
	SoftDeletePassword(ctx context.Context, bankID, passwordID string, at time.Time) error
	// RestorePassword brings back a deleted entry. Timestamps are kept.
	RestorePassword(ctx context.Context, bankID, passwordID string) error
	// SoftDeleteBankPasswords marks every live entry of the bank deleted at at.
	SoftDeleteBankPasswords(ctx context.Context, bankID string, at time.Time) (int64, error)
	// RestoreBankPasswords restores the entries deleted exactly at deletedAt.
	RestoreBankPasswords(ctx context.Context, bankID string, deletedAt time.Time) (int64, error)
}

var errPasswordNotFound = apperr.New(apperr.ErrNotFound, "Password not found")

// PasswordService is the secret entry store. Every operation is gated by the
// caller's role capabilities, the bank owner included.
type PasswordService struct {
	access
	passwords PasswordRepository
	now       func() time.Time
}

// NewPasswordService constructs a PasswordService.
func NewPasswordService(banks BankRepository, roles RoleRepository, passwords PasswordRepository) *PasswordService {
	return &PasswordService{
		access:    access{banks: banks, roles: roles},
		passwords: passwords,
		now:       storageNow,
	}
}

// Create stores a new entry in the bank.
func (s *PasswordService) Create(ctx context.Context, bankID, requesterID string, in models.PasswordInput) (*models.Password, error) {
	if missing := apperr.Missing(
		"title", in.Title,
		"username", in.Username,
		"password", in.Password,
	); len(missing) > 0 {
		return nil, apperr.Required("Please provide title, username and password", missing...)
	}
	bank, _, err := s.require(ctx, bankID, requesterID, permission.CanAddPasswords)
	if err != nil {
		return nil, err
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = models.DefaultCategory
	}
	at := s.now()
	p := &models.Password{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(in.Title),
		Username:  in.Username,
		Password:  in.Password,
		Category:  category,
		BankID:    bank.ID,
		CreatedBy: requesterID,
		Notes:     in.Notes,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := s.passwords.CreatePassword(ctx, p); err != nil {
		return nil, fmt.Errorf("create password: %w", err)
	}
	return p, nil
}

// List returns the live entries the caller's view scope allows.
func (s *PasswordService) List(ctx context.Context, bankID, requesterID string) ([]models.Password, error) {
	bank, role, err := s.require(ctx, bankID, requesterID, permission.CanViewPasswords)
	if err != nil {
		return nil, err
	}
	scope := permission.ViewScope(role)
	if scope.IsEmpty() {
		return []models.Password{}, nil
	}
	return s.list(ctx, bank.ID, scope.CategoryList())
}

// ListByCategory returns the live entries of one category. A category
// outside the caller's view scope yields an empty list.
func (s *PasswordService) ListByCategory(ctx context.Context, bankID, requesterID, category string) ([]models.Password, error) {
	if strings.TrimSpace(category) == "" {
		return nil, apperr.Required("Category is required", "category")
	}
	bank, role, err := s.require(ctx, bankID, requesterID, permission.CanViewPasswords)
	if err != nil {
		return nil, err
	}
	if !permission.ViewScope(role).Allows(category) {
		return []models.Password{}, nil
	}
	return s.list(ctx, bank.ID, []string{category})
}

func (s *PasswordService) list(ctx context.Context, bankID string, categories []string) ([]models.Password, error) {
	entries, err := s.passwords.ListPasswords(ctx, bankID, categories)
	if err != nil {
		return nil, fmt.Errorf("list passwords of bank %s: %w", bankID, err)
	}
	if entries == nil {
		entries = []models.Password{}
	}
	return entries, nil
}

// Update applies a partial update to a live entry of the bank.
func (s *PasswordService) Update(ctx context.Context, bankID, passwordID, requesterID string, upd models.PasswordUpdate) (*models.Password, error) {
	if err := validateUpdate(upd); err != nil {
		return nil, err
	}
	bank, _, err := s.require(ctx, bankID, requesterID, permission.CanEditPasswords)
	if err != nil {
		return nil, err
	}

	p, err := s.passwords.GetPassword(ctx, bank.ID, passwordID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, errPasswordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load password %s: %w", passwordID, err)
	}
	if p.Deleted {
		return nil, errPasswordNotFound
	}

	upd.Apply(p)
	if strings.TrimSpace(p.Category) == "" {
		p.Category = models.DefaultCategory
	}
	p.UpdatedAt = s.now()

	err = s.passwords.UpdatePassword(ctx, p)
	if errors.Is(err, models.ErrNotFound) {
		return nil, errPasswordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update password %s: %w", passwordID, err)
	}
	return p, nil
}

// validateUpdate rejects blanking a required field.
func validateUpdate(upd models.PasswordUpdate) error {
	var fields []apperr.FieldError
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"title", upd.Title},
		{"username", upd.Username},
		{"password", upd.Password},
	} {
		if f.value != nil && strings.TrimSpace(*f.value) == "" {
			fields = append(fields, apperr.FieldError{Field: f.name, Detail: "cannot be empty"})
		}
	}
	if len(fields) > 0 {
		return apperr.Validation("Title, username and password cannot be empty", fields...)
	}
	return nil
}

// Delete soft-deletes a live entry.
func (s *PasswordService) Delete(ctx context.Context, bankID, passwordID, requesterID string) error {
	bank, _, err := s.require(ctx, bankID, requesterID, permission.CanDeletePasswords)
	if err != nil {
		return err
	}
	err = s.passwords.SoftDeletePassword(ctx, bank.ID, passwordID, s.now())
	if errors.Is(err, models.ErrNotFound) {
		return errPasswordNotFound
	}
	if err != nil {
		return fmt.Errorf("delete password %s: %w", passwordID, err)
	}
	return nil
}

// Restore brings back a soft-deleted entry with its original identity.
func (s *PasswordService) Restore(ctx context.Context, bankID, passwordID, requesterID string) (*models.Password, error) {
	bank, _, err := s.require(ctx, bankID, requesterID, permission.CanDeletePasswords)
	if err != nil {
		return nil, err
	}
	err = s.passwords.RestorePassword(ctx, bank.ID, passwordID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, errPasswordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("restore password %s: %w", passwordID, err)
	}

	p, err := s.passwords.GetPassword(ctx, bank.ID, passwordID)
	if err != nil {
		return nil, fmt.Errorf("load password %s: %w", passwordID, err)
	}
	return p, nil
}

// ListDeleted returns the bank's trash, limited to the caller's view scope.
func (s *PasswordService) ListDeleted(ctx context.Context, bankID, requesterID string) ([]models.Password, error) {
	bank, role, err := s.require(ctx, bankID, requesterID, permission.CanDeletePasswords)
	if err != nil {
		return nil, err
	}
	scope := permission.ViewScope(role)
	if scope.IsEmpty() {
		return []models.Password{}, nil
	}

	entries, err := s.passwords.ListDeletedPasswords(ctx, bank.ID)
	if err != nil {
		return nil, fmt.Errorf("list deleted passwords of bank %s: %w", bank.ID, err)
	}
	visible := scope.Filter(entries)
	if visible == nil {
		visible = []models.Password{}
	}
	return visible, nil
}
