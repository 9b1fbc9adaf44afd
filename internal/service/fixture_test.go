package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/GophBank/internal/apperr"
	"github.com/atinyakov/GophBank/internal/models"
	"github.com/atinyakov/GophBank/internal/repository/memory"
)

// stubTokens issues tokens of the form "token:<userID>".
type stubTokens struct{}

func (stubTokens) Issue(userID string) (string, error) {
	return "token:" + userID, nil
}

func (stubTokens) Verify(token string) (string, error) {
	id, ok := strings.CutPrefix(token, "token:")
	if !ok || id == "" {
		return "", apperr.New(apperr.ErrUnauthenticated, "Invalid token")
	}
	return id, nil
}

type fixture struct {
	store     *memory.Store
	auth      *AuthService
	banks     *BankService
	roles     *RoleService
	passwords *PasswordService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	return &fixture{
		store:     store,
		auth:      NewAuthService(store, stubTokens{}, bcrypt.MinCost),
		banks:     NewBankService(store, store, store, store),
		roles:     NewRoleService(store, store),
		passwords: NewPasswordService(store, store, store),
	}
}

// register creates a user named name with email name@example.com.
func (f *fixture) register(t *testing.T, name string) string {
	t.Helper()
	_, user, err := f.auth.Register(context.Background(), RegisterInput{
		Username:        name,
		Email:           name + "@example.com",
		Password:        "secret-" + name,
		PasswordConfirm: "secret-" + name,
	})
	require.NoError(t, err)
	return user.ID
}

func (f *fixture) createBank(t *testing.T, ownerID, name string) *models.Bank {
	t.Helper()
	bank, err := f.banks.CreateBank(context.Background(), ownerID, models.BankInput{Name: name})
	require.NoError(t, err)
	return bank
}

func (f *fixture) createRole(t *testing.T, bankID, ownerID, name string, p models.Permissions) *models.Role {
	t.Helper()
	role, err := f.roles.CreateRole(context.Background(), bankID, ownerID, name, p)
	require.NoError(t, err)
	return role
}

// join creates a user and invites it into the bank with roleID.
func (f *fixture) join(t *testing.T, bank *models.Bank, name, roleID string) string {
	t.Helper()
	id := f.register(t, name)
	_, err := f.banks.InviteMember(context.Background(), bank.ID, bank.OwnerID, name+"@example.com", roleID)
	require.NoError(t, err)
	return id
}

func (f *fixture) addPassword(t *testing.T, bankID, userID, title, category string) *models.Password {
	t.Helper()
	p, err := f.passwords.Create(context.Background(), bankID, userID, models.PasswordInput{
		Title:    title,
		Username: "login-" + title,
		Password: "pw-" + title,
		Category: category,
	})
	require.NoError(t, err)
	return p
}

// fixedClock returns a clock that advances by one second per call.
func fixedClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func requireKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, errors.Is(err, kind), "error %q is not %q", err, kind)
}
