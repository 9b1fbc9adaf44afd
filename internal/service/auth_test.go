package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/GophBank/internal/apperr"
	"github.com/atinyakov/GophBank/internal/models"
)

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, user, err := f.auth.Register(ctx, RegisterInput{
		Username:        " alice ",
		Email:           "Alice@Example.com",
		Password:        "pw",
		PasswordConfirm: "pw",
	})
	require.NoError(t, err)
	assert.Equal(t, "token:"+user.ID, token)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "pw", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("pw")))

	tests := []struct {
		name string
		in   RegisterInput
		kind error
	}{
		{"missing fields", RegisterInput{Username: "bob"}, apperr.ErrValidation},
		{"bad email", RegisterInput{Username: "bob", Email: "bob", Password: "x", PasswordConfirm: "x"}, apperr.ErrValidation},
		{"mismatch", RegisterInput{Username: "bob", Email: "bob@example.com", Password: "x", PasswordConfirm: "y"}, apperr.ErrValidation},
		{"duplicate email", RegisterInput{Username: "bob", Email: "alice@example.com", Password: "x", PasswordConfirm: "x"}, apperr.ErrConflict},
		{"duplicate username", RegisterInput{Username: "alice", Email: "other@example.com", Password: "x", PasswordConfirm: "x"}, apperr.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.auth.Register(ctx, tt.in)
			requireKind(t, err, tt.kind)
		})
	}
}

func TestRegister_MissingFieldsAreListed(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.auth.Register(context.Background(), RegisterInput{Username: "bob", Password: "x"})
	requireKind(t, err, apperr.ErrValidation)

	var names []string
	for _, fe := range apperr.Fields(err) {
		names = append(names, fe.Field)
	}
	assert.Equal(t, []string{"email", "passwordConfirm"}, names)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	aliceID := f.register(t, "alice")
	bank := f.createBank(t, aliceID, "Family")

	token, user, err := f.auth.Login(ctx, "ALICE@example.com", "secret-alice")
	require.NoError(t, err)
	assert.Equal(t, "token:"+aliceID, token)
	require.Len(t, user.BankMemberships, 1)
	assert.Equal(t, bank.ID, user.BankMemberships[0].BankID)
	assert.Equal(t, bank.Roles[0], user.BankMemberships[0].RoleID)

	_, _, err = f.auth.Login(ctx, "alice@example.com", "wrong")
	requireKind(t, err, apperr.ErrUnauthenticated)
	assert.Equal(t, "Invalid email or password", apperr.Message(err))

	_, _, err = f.auth.Login(ctx, "nobody@example.com", "secret-alice")
	requireKind(t, err, apperr.ErrUnauthenticated)

	_, _, err = f.auth.Login(ctx, "", "")
	requireKind(t, err, apperr.ErrValidation)
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	aliceID := f.register(t, "alice")
	first := f.createBank(t, aliceID, "One")
	second := f.createBank(t, aliceID, "Two")

	user, err := f.auth.Me(ctx, aliceID)
	require.NoError(t, err)
	require.Len(t, user.BankMemberships, 2)
	assert.Equal(t, first.ID, user.BankMemberships[0].BankID)
	assert.Equal(t, second.ID, user.BankMemberships[1].BankID)

	_, err = f.auth.Me(ctx, "missing")
	requireKind(t, err, apperr.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	aliceID := f.register(t, "alice")
	f.register(t, "bob")

	_, err := f.auth.UpdateProfile(ctx, aliceID, "bob", "")
	requireKind(t, err, apperr.ErrConflict)
	assert.Equal(t, "Username already taken", apperr.Message(err))

	_, err = f.auth.UpdateProfile(ctx, aliceID, "", "bob@example.com")
	requireKind(t, err, apperr.ErrConflict)

	user, err := f.auth.UpdateProfile(ctx, aliceID, "alicia", "")
	require.NoError(t, err)
	assert.Equal(t, "alicia", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)

	stored, err := f.store.GetUserByUsername(ctx, "alicia")
	require.NoError(t, err)
	assert.Equal(t, aliceID, stored.ID)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	aliceID := f.register(t, "alice")

	err := f.auth.ChangePassword(ctx, aliceID, "wrong", "new", "new")
	requireKind(t, err, apperr.ErrUnauthenticated)

	err = f.auth.ChangePassword(ctx, aliceID, "secret-alice", "new", "other")
	requireKind(t, err, apperr.ErrValidation)

	require.NoError(t, f.auth.ChangePassword(ctx, aliceID, "secret-alice", "new", "new"))

	_, _, err = f.auth.Login(ctx, "alice@example.com", "secret-alice")
	requireKind(t, err, apperr.ErrUnauthenticated)
	_, _, err = f.auth.Login(ctx, "alice@example.com", "new")
	require.NoError(t, err)
}

func TestPasswordLengthLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	long := strings.Repeat("x", MaxPasswordBytes+1)

	_, _, err := f.auth.Register(ctx, RegisterInput{
		Username:        "bob",
		Email:           "bob@example.com",
		Password:        long,
		PasswordConfirm: long,
	})
	requireKind(t, err, apperr.ErrValidation)
	require.Len(t, apperr.Fields(err), 1)
	assert.Equal(t, "password", apperr.Fields(err)[0].Field)

	// Multi-byte runes count by their encoded size.
	wide := strings.Repeat("é", MaxPasswordBytes/2+1)
	_, _, err = f.auth.Register(ctx, RegisterInput{
		Username:        "bob",
		Email:           "bob@example.com",
		Password:        wide,
		PasswordConfirm: wide,
	})
	requireKind(t, err, apperr.ErrValidation)

	exact := strings.Repeat("x", MaxPasswordBytes)
	_, _, err = f.auth.Register(ctx, RegisterInput{
		Username:        "bob",
		Email:           "bob@example.com",
		Password:        exact,
		PasswordConfirm: exact,
	})
	require.NoError(t, err)

	aliceID := f.register(t, "alice")
	err = f.auth.ChangePassword(ctx, aliceID, "secret-alice", long, long)
	requireKind(t, err, apperr.ErrValidation)
	require.Len(t, apperr.Fields(err), 1)
	assert.Equal(t, "newPassword", apperr.Fields(err)[0].Field)

	_, _, err = f.auth.Login(ctx, "alice@example.com", "secret-alice")
	require.NoError(t, err, "password unchanged")
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	id, err := f.auth.Authenticate(context.Background(), "token:u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	_, err = f.auth.Authenticate(context.Background(), "garbage")
	requireKind(t, err, apperr.ErrUnauthenticated)
}

type mockAuthRepo struct {
	AuthRepository
	GetUserByEmailFunc func(ctx context.Context, email string) (*models.User, error)
}

func (m *mockAuthRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.GetUserByEmailFunc(ctx, email)
}

func TestLogin_StorageErrorIsInternal(t *testing.T) {
	dbErr := errors.New("connection reset")
	repo := &mockAuthRepo{
		GetUserByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			if email != "carol@example.com" {
				t.Errorf("GetUserByEmail received email = %q; want %q", email, "carol@example.com")
			}
			return nil, dbErr
		},
	}
	svc := NewAuthService(repo, stubTokens{}, bcrypt.MinCost)
	svc.now = func() time.Time { return time.Unix(0, 0) }

	_, _, err := svc.Login(context.Background(), "carol@example.com", "pw")
	if !errors.Is(err, dbErr) {
		t.Fatalf("Login error = %v; want wrapped %v", err, dbErr)
	}
	if got := apperr.Message(err); got != "internal server error" {
		t.Errorf("Message = %q; want generic text", got)
	}
}
