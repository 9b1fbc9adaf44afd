package http

import (
	"context"
	"time"

	"github.com/atinyakov/GophBank/internal/apperr"
	"github.com/atinyakov/GophBank/internal/models"
	"github.com/atinyakov/GophBank/internal/service"
)

// authFunc implements middleware.Authenticator.
type authFunc func(ctx context.Context, token string) (string, error)

func (f authFunc) Authenticate(ctx context.Context, token string) (string, error) {
	return f(ctx, token)
}

// tokenAuth accepts the token "good" as user u1.
var tokenAuth = authFunc(func(_ context.Context, token string) (string, error) {
	if token == "good" {
		return "u1", nil
	}
	return "", apperr.New(apperr.ErrUnauthenticated, "Invalid or expired token")
})

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// fakeAuthService implements AuthService for testing.
type fakeAuthService struct {
	register       func(in service.RegisterInput) (string, *models.User, error)
	login          func(email, password string) (string, *models.User, error)
	me             func(userID string) (*models.User, error)
	updateProfile  func(userID, username, email string) (*models.User, error)
	changePassword func(userID, current, next, confirm string) error
}

func (f *fakeAuthService) Register(_ context.Context, in service.RegisterInput) (string, *models.User, error) {
	return f.register(in)
}

func (f *fakeAuthService) Login(_ context.Context, email, password string) (string, *models.User, error) {
	return f.login(email, password)
}

func (f *fakeAuthService) Me(_ context.Context, userID string) (*models.User, error) {
	return f.me(userID)
}

func (f *fakeAuthService) UpdateProfile(_ context.Context, userID, username, email string) (*models.User, error) {
	return f.updateProfile(userID, username, email)
}

func (f *fakeAuthService) ChangePassword(_ context.Context, userID, current, next, confirm string) error {
	return f.changePassword(userID, current, next, confirm)
}

// fakeBankService implements BankService; calls records "method bankID requester".
type fakeBankService struct {
	calls []string
	err   error
}

func (f *fakeBankService) record(method, bankID, requesterID string) {
	f.calls = append(f.calls, method+" "+bankID+" "+requesterID)
}

func (f *fakeBankService) CreateBank(_ context.Context, ownerID string, in models.BankInput) (*models.Bank, error) {
	f.record("CreateBank", in.Name, ownerID)
	return &models.Bank{ID: "b1", Name: in.Name, OwnerID: ownerID}, f.err
}

func (f *fakeBankService) ListBanksForUser(_ context.Context, userID string) ([]models.Bank, error) {
	f.record("ListBanksForUser", "", userID)
	return []models.Bank{}, f.err
}

func (f *fakeBankService) GetBank(_ context.Context, bankID, requesterID string) (*models.BankDetails, error) {
	f.record("GetBank", bankID, requesterID)
	return &models.BankDetails{Bank: models.Bank{ID: bankID}}, f.err
}

func (f *fakeBankService) UpdateBankSettings(_ context.Context, bankID, requesterID string, _ models.BankSettings) (*models.Bank, error) {
	f.record("UpdateBankSettings", bankID, requesterID)
	return &models.Bank{ID: bankID}, f.err
}

func (f *fakeBankService) SoftDeleteBank(_ context.Context, bankID, requesterID string) error {
	f.record("SoftDeleteBank", bankID, requesterID)
	return f.err
}

func (f *fakeBankService) RestoreBank(_ context.Context, bankID, requesterID string) (*models.Bank, error) {
	f.record("RestoreBank", bankID, requesterID)
	return &models.Bank{ID: bankID}, f.err
}

func (f *fakeBankService) InviteMember(_ context.Context, bankID, requesterID, email, roleID string) (*models.MemberDetails, error) {
	f.record("InviteMember", bankID, requesterID)
	return &models.MemberDetails{Email: email, Role: &models.Role{ID: roleID}}, f.err
}

func (f *fakeBankService) AssignRole(_ context.Context, bankID, requesterID, targetUserID, roleID string) error {
	f.record("AssignRole", bankID, requesterID+" "+targetUserID+" "+roleID)
	return f.err
}

func (f *fakeBankService) ClearAllPasswords(_ context.Context, bankID, requesterID string) (models.ClearResult, error) {
	f.record("ClearAllPasswords", bankID, requesterID)
	return models.ClearResult{ClearedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), Count: 2}, f.err
}

func (f *fakeBankService) RestoreClearedPasswords(_ context.Context, bankID, requesterID string, clearedAt time.Time) (int64, error) {
	f.record("RestoreClearedPasswords", bankID, requesterID+" "+clearedAt.Format(time.RFC3339))
	return 2, f.err
}

// fakeRoleService implements RoleService.
type fakeRoleService struct {
	calls []string
	err   error
}

func (f *fakeRoleService) CreateRole(_ context.Context, bankID, requesterID, name string, _ models.Permissions) (*models.Role, error) {
	f.calls = append(f.calls, "CreateRole "+bankID+" "+requesterID+" "+name)
	return &models.Role{ID: "r2", BankID: bankID, Name: name}, f.err
}

func (f *fakeRoleService) UpdateRole(_ context.Context, bankID, roleID, requesterID string, _ models.Permissions) (*models.Role, error) {
	f.calls = append(f.calls, "UpdateRole "+bankID+" "+roleID+" "+requesterID)
	return &models.Role{ID: roleID, BankID: bankID}, f.err
}

func (f *fakeRoleService) DeleteRole(_ context.Context, bankID, roleID, requesterID string) (string, error) {
	f.calls = append(f.calls, "DeleteRole "+bankID+" "+roleID+" "+requesterID)
	return "r-fallback", f.err
}

func (f *fakeRoleService) ListRoles(_ context.Context, bankID, requesterID string) ([]models.Role, error) {
	f.calls = append(f.calls, "ListRoles "+bankID+" "+requesterID)
	return []models.Role{}, f.err
}

// fakePasswordService implements PasswordService.
type fakePasswordService struct {
	calls []string
	list  []models.Password
	err   error
	upd   models.PasswordUpdate
}

func (f *fakePasswordService) Create(_ context.Context, bankID, requesterID string, in models.PasswordInput) (*models.Password, error) {
	f.calls = append(f.calls, "Create "+bankID+" "+requesterID)
	return &models.Password{ID: "p1", BankID: bankID, Title: in.Title}, f.err
}

func (f *fakePasswordService) List(_ context.Context, bankID, requesterID string) ([]models.Password, error) {
	f.calls = append(f.calls, "List "+bankID+" "+requesterID)
	return f.list, f.err
}

func (f *fakePasswordService) ListByCategory(_ context.Context, bankID, requesterID, category string) ([]models.Password, error) {
	f.calls = append(f.calls, "ListByCategory "+bankID+" "+requesterID+" "+category)
	return f.list, f.err
}

func (f *fakePasswordService) ListDeleted(_ context.Context, bankID, requesterID string) ([]models.Password, error) {
	f.calls = append(f.calls, "ListDeleted "+bankID+" "+requesterID)
	return f.list, f.err
}

func (f *fakePasswordService) Update(_ context.Context, bankID, passwordID, requesterID string, upd models.PasswordUpdate) (*models.Password, error) {
	f.calls = append(f.calls, "Update "+bankID+" "+passwordID+" "+requesterID)
	f.upd = upd
	return &models.Password{ID: passwordID, BankID: bankID}, f.err
}

func (f *fakePasswordService) Delete(_ context.Context, bankID, passwordID, requesterID string) error {
	f.calls = append(f.calls, "Delete "+bankID+" "+passwordID+" "+requesterID)
	return f.err
}

func (f *fakePasswordService) Restore(_ context.Context, bankID, passwordID, requesterID string) (*models.Password, error) {
	f.calls = append(f.calls, "Restore "+bankID+" "+passwordID+" "+requesterID)
	return &models.Password{ID: passwordID, BankID: bankID}, f.err
}
