package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/GophBank/internal/middleware"
	"github.com/atinyakov/GophBank/internal/models"
)

// BankService defines the bank and membership operations required by
// BankHandler.
type BankService interface {
	CreateBank(ctx context.Context, ownerID string, in models.BankInput) (*models.Bank, error)
	ListBanksForUser(ctx context.Context, userID string) ([]models.Bank, error)
	GetBank(ctx context.Context, bankID, requesterID string) (*models.BankDetails, error)
	UpdateBankSettings(ctx context.Context, bankID, requesterID string, in models.BankSettings) (*models.Bank, error)
	SoftDeleteBank(ctx context.Context, bankID, requesterID string) error
	RestoreBank(ctx context.Context, bankID, requesterID string) (*models.Bank, error)
	InviteMember(ctx context.Context, bankID, requesterID, email, roleID string) (*models.MemberDetails, error)
	AssignRole(ctx context.Context, bankID, requesterID, targetUserID, roleID string) error
	ClearAllPasswords(ctx context.Context, bankID, requesterID string) (models.ClearResult, error)
	RestoreClearedPasswords(ctx context.Context, bankID, requesterID string, clearedAt time.Time) (int64, error)
}

// BankHandler serves /api/banks and the role assignment endpoint.
type BankHandler struct {
	BankService BankService
	Log         *zap.Logger
}

// BankRequest is the JSON payload for creating a bank or changing its
// settings.
type BankRequest struct {
	Name        string `json:"name" validate:"max=100"`
	Description string `json:"description" validate:"max=500"`
	Icon        string `json:"icon" validate:"max=16"`
}

// InviteRequest is the JSON payload of POST /api/banks/{bankID}/invite.
type InviteRequest struct {
	Email  string `json:"email" validate:"omitempty,email"`
	RoleID string `json:"roleId"`
}

// AssignRoleRequest is the JSON payload of POST /api/roles/{bankID}/assign.
type AssignRoleRequest struct {
	UserID string `json:"userId"`
	RoleID string `json:"roleId"`
}

// RestoreClearedRequest is the JSON payload of
// POST /api/banks/{bankID}/passwords/restore.
type RestoreClearedRequest struct {
	ClearedAt time.Time `json:"clearedAt"`
}

type bankResponse struct {
	Message string       `json:"message,omitempty"`
	Bank    *models.Bank `json:"bank"`
}

// Create creates a bank owned by the caller.
func (h *BankHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req BankRequest
	if !read(w, r, &req) {
		return
	}
	userID := middleware.GetUserIDFromContext(r.Context())
	bank, err := h.BankService.CreateBank(r.Context(), userID, models.BankInput{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
	})
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusCreated, bankResponse{Message: "Bank created successfully", Bank: bank})
}

// List returns the caller's live banks.
func (h *BankHandler) List(w http.ResponseWriter, r *http.Request) {
	banks, err := h.BankService.ListBanksForUser(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusOK, map[string]any{"banks": banks})
}

// Get returns one bank with members and roles resolved.
func (h *BankHandler) Get(w http.ResponseWriter, r *http.Request) {
	bank, err := h.BankService.GetBank(r.Context(), chi.URLParam(r, "bankID"), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusOK, map[string]any{"bank": bank})
}

// Update changes the bank settings.
func (h *BankHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req BankRequest
	if !read(w, r, &req) {
		return
	}
	bank, err := h.BankService.UpdateBankSettings(r.Context(), chi.URLParam(r, "bankID"),
		middleware.GetUserIDFromContext(r.Context()), models.BankSettings{
			Name:        req.Name,
			Description: req.Description,
			Icon:        req.Icon,
		})
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusOK, bankResponse{Message: "Bank settings updated successfully", Bank: bank})
}

// Delete soft-deletes the bank.
func (h *BankHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.BankService.SoftDeleteBank(r.Context(), chi.URLParam(r, "bankID"), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusOK, Response{Message: "Bank deleted successfully"})
}

// Restore brings a soft-deleted bank back.
func (h *BankHandler) Restore(w http.ResponseWriter, r *http.Request) {
	bank, err := h.BankService.RestoreBank(r.Context(), chi.URLParam(r, "bankID"), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusOK, bankResponse{Message: "Bank restored successfully", Bank: bank})
}

// Invite adds an existing user to the bank with a role.
func (h *BankHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req InviteRequest
	if !read(w, r, &req) {
		return
	}
	member, err := h.BankService.InviteMember(r.Context(), chi.URLParam(r, "bankID"),
		middleware.GetUserIDFromContext(r.Context()), req.Email, req.RoleID)
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusCreated, map[string]any{
		"message": "User invited successfully",
		"member":  member,
	})
}

// AssignRole moves a member to another role of the bank.
func (h *BankHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req AssignRoleRequest
	if !read(w, r, &req) {
		return
	}
	err := h.BankService.AssignRole(r.Context(), chi.URLParam(r, "bankID"),
		middleware.GetUserIDFromContext(r.Context()), req.UserID, req.RoleID)
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusOK, Response{Message: "Role assigned successfully"})
}

// ClearPasswords soft-deletes every entry of the bank.
func (h *BankHandler) ClearPasswords(w http.ResponseWriter, r *http.Request) {
	res, err := h.BankService.ClearAllPasswords(r.Context(), chi.URLParam(r, "bankID"), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusOK, map[string]any{
		"message":   "All passwords cleared successfully",
		"clearedAt": res.ClearedAt,
		"count":     res.Count,
	})
}

// RestoreClearedPasswords undoes one ClearPasswords call.
func (h *BankHandler) RestoreClearedPasswords(w http.ResponseWriter, r *http.Request) {
	var req RestoreClearedRequest
	if !read(w, r, &req) {
		return
	}
	n, err := h.BankService.RestoreClearedPasswords(r.Context(), chi.URLParam(r, "bankID"),
		middleware.GetUserIDFromContext(r.Context()), req.ClearedAt)
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusOK, map[string]any{
		"message": "Passwords restored successfully",
		"count":   n,
	})
}
