// Package http provides the HTTP handlers and routing of the GophBank API.
package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/GophBank/internal/middleware"
	"github.com/atinyakov/GophBank/internal/models"
	"github.com/atinyakov/GophBank/internal/service"
)

// AuthService defines the credential operations required by AuthHandler.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (string, *models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	Me(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID, username, email string) (*models.User, error)
	ChangePassword(ctx context.Context, userID, current, next, confirm string) error
}

// AuthHandler handles registration, login and profile requests.
type AuthHandler struct {
	// AuthService performs the underlying credential operations.
	AuthService AuthService
	Log         *zap.Logger
}

// RegisterRequest is the JSON payload of POST /api/auth/register.
type RegisterRequest struct {
	Username        string `json:"username" validate:"max=64"`
	Email           string `json:"email" validate:"omitempty,email"`
	Password        string `json:"password" validate:"max=72"`
	PasswordConfirm string `json:"passwordConfirm" validate:"max=72"`
}

// LoginRequest is the JSON payload of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileRequest is the JSON payload of PUT /api/auth/me. Empty fields are
// left unchanged.
type ProfileRequest struct {
	Username string `json:"username" validate:"max=64"`
	Email    string `json:"email" validate:"omitempty,email"`
}

// ChangePasswordRequest is the JSON payload of PUT /api/auth/me/password.
type ChangePasswordRequest struct {
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword" validate:"max=72"`
	NewPasswordConfirm string `json:"newPasswordConfirm"`
}

type sessionResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
}

type userResponse struct {
	Message string       `json:"message,omitempty"`
	User    *models.User `json:"user"`
}

// Register creates an account and answers with a session token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !read(w, r, &req) {
		return
	}
	token, user, err := h.AuthService.Register(r.Context(), service.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusCreated, sessionResponse{Message: "User registered successfully", Token: token, User: user})
}

// Login verifies email and password and answers with a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !read(w, r, &req) {
		return
	}
	token, user, err := h.AuthService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusOK, sessionResponse{Message: "Login successful", Token: token, User: user})
}

// Me returns the caller with their bank memberships.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.AuthService.Me(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusOK, userResponse{User: user})
}

// UpdateProfile changes the caller's username or email.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if !read(w, r, &req) {
		return
	}
	userID := middleware.GetUserIDFromContext(r.Context())
	user, err := h.AuthService.UpdateProfile(r.Context(), userID, req.Username, req.Email)
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusOK, userResponse{Message: "Profile updated successfully", User: user})
}

// ChangePassword replaces the caller's password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !read(w, r, &req) {
		return
	}
	userID := middleware.GetUserIDFromContext(r.Context())
	err := h.AuthService.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword, req.NewPasswordConfirm)
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusOK, Response{Message: "Password updated successfully"})
}
