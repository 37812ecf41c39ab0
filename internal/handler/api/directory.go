package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/svcportal/internal/model"
	"github.com/olegiv/svcportal/internal/service"
)

// DirectoryHandler serves the admin endpoints that change users and the
// service catalog.
type DirectoryHandler struct {
	users   *service.UserService
	catalog *service.CatalogService
	logger  *slog.Logger
}

// NewDirectoryHandler creates a new DirectoryHandler.
func NewDirectoryHandler(users *service.UserService, catalog *service.CatalogService, logger *slog.Logger) *DirectoryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectoryHandler{users: users, catalog: catalog, logger: logger}
}

// UpdateRoleRequest is the body of PUT /admin/users/{id}.
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

// UpdateServiceStatusRequest is the body of PUT /admin/services/{id}/status.
type UpdateServiceStatusRequest struct {
	Status string `json:"status" validate:"required,service_status"`
}

// ListUsers handles GET /api/v1/admin/users.
func (h *DirectoryHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	users, err := h.users.List(r.Context(), actor)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	WriteSuccess(w, users, &Meta{Total: int64(len(users))})
}

// UpdateUserRole handles PUT /api/v1/admin/users/{id}.
func (h *DirectoryHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, "user")
	if !ok {
		return
	}

	var body UpdateRoleRequest
	if !bindJSON(w, r, &body) {
		return
	}

	user, err := h.users.SetRole(r.Context(), actor, id, model.Role(body.Role))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	WriteSuccess(w, user, nil)
}

// UpdateServiceStatus handles PUT /api/v1/admin/services/{id}/status.
func (h *DirectoryHandler) UpdateServiceStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var body UpdateServiceStatusRequest
	if !bindJSON(w, r, &body) {
		return
	}

	svc, err := h.catalog.SetStatus(r.Context(), actor, chi.URLParam(r, "id"), model.ServiceStatus(body.Status))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	WriteSuccess(w, svc, nil)
}
