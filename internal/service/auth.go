// Package service provides the business logic of GophBank: credentials,
// banks and memberships, roles and password entries. Persistence is
// delegated to repository interfaces declared next to each service.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/GophBank/internal/apperr"
	"github.com/atinyakov/GophBank/internal/models"
)

// AuthRepository defines the persistence operations
// required by the credential store.
type AuthRepository interface {
	// CreateUser inserts a new user. A taken username or email yields models.ErrDuplicate.
	CreateUser(ctx context.Context, u *models.User) error
	// GetUserByID returns models.ErrNotFound for unknown ids.
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	// GetUserByEmail returns models.ErrNotFound for unknown addresses.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// GetUserByUsername returns models.ErrNotFound for unknown usernames.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	// GetUsersByIDs returns the users that exist among ids, in any order.
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	// UpdateUserProfile stores username, email and updated time.
	UpdateUserProfile(ctx context.Context, u *models.User) error
	// UpdatePasswordHash replaces the stored hash.
	UpdatePasswordHash(ctx context.Context, userID, hash string, at time.Time) error
	// ListMemberships returns the user's memberships in join order.
	ListMemberships(ctx context.Context, userID string) ([]models.BankMembership, error)
}

// TokenIssuer issues and verifies session tokens.
type TokenIssuer interface {
	// Issue returns a signed token for userID.
	Issue(userID string) (string, error)
	// Verify returns the user id carried by a valid token.
	Verify(token string) (string, error)
}

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

var (
	errInvalidCredentials = apperr.New(apperr.ErrUnauthenticated, "Invalid email or password")
	errUserNotFound       = apperr.New(apperr.ErrNotFound, "User not found")
)

// RegisterInput holds the registration form.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	PasswordConfirm string
}

// AuthService implements the credential store: registration, login, profile
// and password changes, and session resolution.
type AuthService struct {
	// repo performs the data-layer operations.
	repo   AuthRepository
	tokens TokenIssuer
	cost   int
	now    func() time.Time
}

// NewAuthService constructs an AuthService using the provided repository and
// token issuer. bcryptCost values outside bcrypt's range fall back to the
// default cost.
func NewAuthService(repo AuthRepository, tokens TokenIssuer, bcryptCost int) *AuthService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{repo: repo, tokens: tokens, cost: bcryptCost, now: storageNow}
}

// Register creates a user and returns a session token for it.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (string, *models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)

	if missing := apperr.Missing(
		"username", in.Username,
		"email", in.Email,
		"password", in.Password,
		"passwordConfirm", in.PasswordConfirm,
	); len(missing) > 0 {
		return "", nil, apperr.Required("Please provide all required fields", missing...)
	}
	if !strings.Contains(in.Email, "@") {
		return "", nil, apperr.Validation("Please provide a valid email",
			apperr.FieldError{Field: "email", Detail: "must be a valid email address"})
	}
	if in.Password != in.PasswordConfirm {
		return "", nil, apperr.Validation("Passwords do not match",
			apperr.FieldError{Field: "passwordConfirm", Detail: "must match password"})
	}
	if err := checkPasswordLength("password", in.Password); err != nil {
		return "", nil, err
	}

	taken, err := found(s.repo.GetUserByEmail(ctx, in.Email))
	if err == nil && !taken {
		taken, err = found(s.repo.GetUserByUsername(ctx, in.Username))
	}
	if err != nil {
		return "", nil, err
	}
	if taken {
		return "", nil, apperr.New(apperr.ErrConflict, "User already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}
	at := s.now()
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return "", nil, apperr.New(apperr.ErrConflict, "User already exists")
		}
		return "", nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, user, nil
}

// Login verifies the credentials and returns a session token together with
// the user and its memberships.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = normalizeEmail(email)
	if missing := apperr.Missing("email", email, "password", password); len(missing) > 0 {
		return "", nil, apperr.Required("Please provide email and password", missing...)
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return "", nil, errInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("find user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, errInvalidCredentials
	}

	if user.BankMemberships, err = s.repo.ListMemberships(ctx, user.ID); err != nil {
		return "", nil, fmt.Errorf("list memberships: %w", err)
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, user, nil
}

// Me returns the user with its memberships.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.BankMemberships, err = s.repo.ListMemberships(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return user, nil
}

// UpdateProfile changes username and/or email. Empty values are ignored.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, username, email string) (*models.User, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	username = strings.TrimSpace(username)
	if username != "" && username != user.Username {
		taken, err := found(s.repo.GetUserByUsername(ctx, username))
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperr.New(apperr.ErrConflict, "Username already taken")
		}
		user.Username = username
	}

	email = normalizeEmail(email)
	if email != "" && email != user.Email {
		if !strings.Contains(email, "@") {
			return nil, apperr.Validation("Please provide a valid email",
				apperr.FieldError{Field: "email", Detail: "must be a valid email address"})
		}
		taken, err := found(s.repo.GetUserByEmail(ctx, email))
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperr.New(apperr.ErrConflict, "Email already in use")
		}
		user.Email = email
	}

	user.UpdatedAt = s.now()
	if err := s.repo.UpdateUserProfile(ctx, user); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return nil, apperr.New(apperr.ErrConflict, "Username or email already in use")
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

// ChangePassword replaces the user's password after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next, confirm string) error {
	if missing := apperr.Missing(
		"currentPassword", current,
		"newPassword", next,
		"newPasswordConfirm", confirm,
	); len(missing) > 0 {
		return apperr.Required("Please provide all password fields", missing...)
	}
	if next != confirm {
		return apperr.Validation("New passwords do not match",
			apperr.FieldError{Field: "newPasswordConfirm", Detail: "must match newPassword"})
	}
	if err := checkPasswordLength("newPassword", next); err != nil {
		return err
	}

	user, err := s.user(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return apperr.New(apperr.ErrUnauthenticated, "Current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePasswordHash(ctx, user.ID, string(hash), s.now()); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// Authenticate resolves the caller identity carried by a session token.
func (s *AuthService) Authenticate(_ context.Context, token string) (string, error) {
	return s.tokens.Verify(token)
}

func (s *AuthService) user(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// found reports whether a user lookup hit a record.
func found(_ *models.User, err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, models.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("lookup user: %w", err)
	}
}

func checkPasswordLength(field, password string) error {
	if len([]byte(password)) > MaxPasswordBytes {
		return apperr.Validation("Password is too long",
			apperr.FieldError{Field: field, Detail: fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes)})
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
