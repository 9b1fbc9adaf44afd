package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/GophBank/internal/apperr"
	"github.com/atinyakov/GophBank/internal/models"
	"github.com/atinyakov/GophBank/internal/permission"
)

var (
	errBankNotFound    = apperr.New(apperr.ErrNotFound, "Bank not found")
	errNotMember       = apperr.New(apperr.ErrForbidden, "You are not a member of this bank")
	errNoPermission    = apperr.New(apperr.ErrForbidden, "You do not have permission for this action")
	errConcurrentWrite = apperr.New(apperr.ErrConflict, "Bank was modified concurrently, please retry")
)

// access resolves the caller's standing in a bank before any mutation.
type access struct {
	banks BankRepository
	roles RoleRepository
}

// bank loads a bank, soft-deleted or not.
func (a access) bank(ctx context.Context, bankID string) (*models.Bank, error) {
	bank, err := a.banks.GetBank(ctx, bankID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, errBankNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load bank %s: %w", bankID, err)
	}
	return bank, nil
}

// liveBank loads a bank and treats a soft-deleted one as absent.
func (a access) liveBank(ctx context.Context, bankID string) (*models.Bank, error) {
	bank, err := a.bank(ctx, bankID)
	if err != nil {
		return nil, err
	}
	if bank.Deleted {
		return nil, errBankNotFound
	}
	return bank, nil
}

// owned loads a live bank and checks that userID owns it.
func (a access) owned(ctx context.Context, bankID, userID, action string) (*models.Bank, error) {
	bank, err := a.liveBank(ctx, bankID)
	if err != nil {
		return nil, err
	}
	if !permission.IsOwner(bank, userID) {
		return nil, apperr.New(apperr.ErrForbidden, "Only bank owner can "+action)
	}
	return bank, nil
}

// ownedAny is owned for operations that also apply to a soft-deleted bank.
// A deleted bank stays invisible to everyone but its owner.
func (a access) ownedAny(ctx context.Context, bankID, userID, action string) (*models.Bank, error) {
	bank, err := a.bank(ctx, bankID)
	if err != nil {
		return nil, err
	}
	if !permission.IsOwner(bank, userID) {
		if bank.Deleted {
			return nil, errBankNotFound
		}
		return nil, apperr.New(apperr.ErrForbidden, "Only bank owner can "+action)
	}
	return bank, nil
}

// member loads a live bank and resolves the role userID holds in it.
// The returned role is nil when the membership points at a missing role.
func (a access) member(ctx context.Context, bankID, userID string) (*models.Bank, *models.Role, error) {
	bank, err := a.liveBank(ctx, bankID)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := bank.Member(userID); !ok {
		return nil, nil, errNotMember
	}
	roles, err := a.roles.ListRoles(ctx, bank.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list roles of bank %s: %w", bank.ID, err)
	}
	role, err := permission.EffectiveRole(bank, roles, userID)
	if err != nil {
		return nil, nil, errNotMember
	}
	return bank, role, nil
}

// require resolves the caller's role and checks one capability.
func (a access) require(ctx context.Context, bankID, userID string, c permission.Capability) (*models.Bank, *models.Role, error) {
	bank, role, err := a.member(ctx, bankID, userID)
	if err != nil {
		return nil, nil, err
	}
	if !permission.HasCapability(role, c) {
		return nil, nil, errNoPermission
	}
	return bank, role, nil
}

// storeWriteError translates repository write errors shared by bank-scoped
// writes.
func storeWriteError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrStaleVersion):
		return errConcurrentWrite
	case errors.Is(err, models.ErrNotFound):
		return errBankNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// storageNow returns the current time at storage precision.
func storageNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
