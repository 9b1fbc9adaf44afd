package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/GophBank/internal/middleware"
	"github.com/atinyakov/GophBank/internal/models"
)

// RoleService defines the role registry operations required by RoleHandler.
type RoleService interface {
	CreateRole(ctx context.Context, bankID, requesterID, name string, p models.Permissions) (*models.Role, error)
	UpdateRole(ctx context.Context, bankID, roleID, requesterID string, p models.Permissions) (*models.Role, error)
	DeleteRole(ctx context.Context, bankID, roleID, requesterID string) (string, error)
	ListRoles(ctx context.Context, bankID, requesterID string) ([]models.Role, error)
}

// RoleHandler serves /api/roles.
type RoleHandler struct {
	RoleService RoleService
	Log         *zap.Logger
}

// RoleRequest is the JSON payload for creating a role or replacing its
// permissions. Name is ignored on update.
type RoleRequest struct {
	Name        string             `json:"name" validate:"max=64"`
	Permissions models.Permissions `json:"permissions"`
}

type roleResponse struct {
	Message string       `json:"message"`
	Role    *models.Role `json:"role"`
}

// Create adds a role to the bank.
func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if !read(w, r, &req) {
		return
	}
	role, err := h.RoleService.CreateRole(r.Context(), chi.URLParam(r, "bankID"),
		middleware.GetUserIDFromContext(r.Context()), req.Name, req.Permissions)
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusCreated, roleResponse{Message: "Role created successfully", Role: role})
}

// List returns the roles of the bank in creation order.
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.RoleService.ListRoles(r.Context(), chi.URLParam(r, "bankID"), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusOK, map[string]any{"roles": roles})
}

// Update overwrites the permission set of a role.
func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if !read(w, r, &req) {
		return
	}
	role, err := h.RoleService.UpdateRole(r.Context(), chi.URLParam(r, "bankID"), chi.URLParam(r, "roleID"),
		middleware.GetUserIDFromContext(r.Context()), req.Permissions)
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusOK, roleResponse{Message: "Role updated successfully", Role: role})
}

// Delete removes a role, moving its members to the fallback role.
func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	fallback, err := h.RoleService.DeleteRole(r.Context(), chi.URLParam(r, "bankID"), chi.URLParam(r, "roleID"),
		middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		fail(w, h.Log, r, err)
		return
	}
	write(w, http.StatusOK, map[string]any{
		"message":        "Role deleted successfully",
		"fallbackRoleId": fallback,
	})
}
