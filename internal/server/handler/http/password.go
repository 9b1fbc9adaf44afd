package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/GophBank/internal/middleware"
	"github.com/atinyakov/GophBank/internal/models"
)

// PasswordService defines the entry operations required by PasswordHandler.
type PasswordService interface {
	Create(ctx context.Context, bankID, requesterID string, in models.PasswordInput) (*models.Password, error)
	List(ctx context.Context, bankID, requesterID string) ([]models.Password, error)
	ListByCategory(ctx context.Context, bankID, requesterID, category string) ([]models.Password, error)
	ListDeleted(ctx context.Context, bankID, requesterID string) ([]models.Password, error)
	Update(ctx context.Context, bankID, passwordID, requesterID string, upd models.PasswordUpdate) (*models.Password, error)
	Delete(ctx context.Context, bankID, passwordID, requesterID string) error
	Restore(ctx context.Context, bankID, passwordID, requesterID string) (*models.Password, error)
}

// PasswordHandler serves /api/passwords.
type PasswordHandler struct {
	PasswordService PasswordService
	Log             *zap.Logger
}

// PasswordRequest is the JSON payload for creating an entry.
type PasswordRequest struct {
	Title    string `json:"title" validate:"max=200"`
	Username string `json:"username" validate:"max=200"`
	Password string `json:"password" validate:"max=1024"`
	Category string `json:"category" validate:"max=64"`
	Notes    string `json:"notes" validate:"max=4096"`
}

// PasswordUpdateRequest is the JSON payload for a partial update. Absent
// fields are left unchanged.
type PasswordUpdateRequest struct {
	Title    *string `json:"title" validate:"omitempty,max=200"`
	Username *string `json:"username" validate:"omitempty,max=200"`
	Password *string `json:"password" validate:"omitempty,max=1024"`
	Category *string `json:"category" validate:"omitempty,max=64"`
	Notes    *string `json:"notes" validate:"omitempty,max=4096"`
}

type passwordResponse struct {
	Message  string           `json:"message"`
	Password *models.Password `json:"password"`
}

type passwordsResponse struct {
	Passwords []models.Password `json:"passwords"`
}

// Create stores a new entry in the bank.
func (h *PasswordHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req PasswordRequest
	if !read(w, r, &req) {
		return
	}
	p, err := h.PasswordService.Create(r.Context(), chi.URLParam(r, "bankID"),
		middleware.GetUserIDFromContext(r.Context()), models.PasswordInput{
			Title:    req.Title,
			Username: req.Username,
			Password: req.Password,
			Category: req.Category,
			Notes:    req.Notes,
		})
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusCreated, passwordResponse{Message: "Password created successfully", Password: p})
}

// List returns the entries the caller's role can see.
func (h *PasswordHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.PasswordService.List(r.Context(), chi.URLParam(r, "bankID"), middleware.GetUserIDFromContext(r.Context()))
	h.writeList(w, r, list, err)
}

// ListByCategory returns the visible entries of one category.
func (h *PasswordHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	list, err := h.PasswordService.ListByCategory(r.Context(), chi.URLParam(r, "bankID"),
		middleware.GetUserIDFromContext(r.Context()), chi.URLParam(r, "category"))
	h.writeList(w, r, list, err)
}

// ListDeleted returns the soft-deleted entries of the bank.
func (h *PasswordHandler) ListDeleted(w http.ResponseWriter, r *http.Request) {
	list, err := h.PasswordService.ListDeleted(r.Context(), chi.URLParam(r, "bankID"), middleware.GetUserIDFromContext(r.Context()))
	h.writeList(w, r, list, err)
}

func (h *PasswordHandler) writeList(w http.ResponseWriter, r *http.Request, list []models.Password, err error) {
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	if list == nil {
		list = []models.Password{}
	}
	write(w, http.StatusOK, passwordsResponse{Passwords: list})
}

// Update applies a partial update to an entry.
func (h *PasswordHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req PasswordUpdateRequest
	if !read(w, r, &req) {
		return
	}
	p, err := h.PasswordService.Update(r.Context(), chi.URLParam(r, "bankID"), chi.URLParam(r, "passwordID"),
		middleware.GetUserIDFromContext(r.Context()), models.PasswordUpdate{
			Title:    req.Title,
			Username: req.Username,
			Password: req.Password,
			Category: req.Category,
			Notes:    req.Notes,
		})
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusOK, passwordResponse{Message: "Password updated successfully", Password: p})
}

// Delete soft-deletes an entry.
func (h *PasswordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.PasswordService.Delete(r.Context(), chi.URLParam(r, "bankID"), chi.URLParam(r, "passwordID"),
		middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusOK, Response{Message: "Password deleted successfully"})
}

// Restore brings a soft-deleted entry back.
func (h *PasswordHandler) Restore(w http.ResponseWriter, r *http.Request) {
	p, err := h.PasswordService.Restore(r.Context(), chi.URLParam(r, "bankID"), chi.URLParam(r, "passwordID"),
		middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusOK, passwordResponse{Message: "Password restored successfully", Password: p})
}
