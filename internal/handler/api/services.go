package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// GrantAccessRequest is the body of POST /admin/services/{id}/users.
type GrantAccessRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

// ListServices handles GET /api/v1/services.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.dir.ListServices(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, services, &Meta{Total: int64(len(services))})
}

// EntitledServices handles GET /api/v1/services/entitled. Admins may pass
// ?user_id= to inspect another user.
func (h *Handler) EntitledServices(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	userID := actor.ID
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			WriteValidationError(w, map[string]string{"user_id": "must be a positive integer"})
			return
		}
		userID = id
	}

	services, err := h.access.EntitledServiceList(r.Context(), actor, userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, services, &Meta{Total: int64(len(services))})
}

// AvailableServices handles GET /api/v1/services/available.
func (h *Handler) AvailableServices(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	services, err := h.access.AvailableServices(r.Context(), actor)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, services, &Meta{Total: int64(len(services))})
}

// ServiceUsers handles GET /api/v1/admin/services/{id}/users.
func (h *Handler) ServiceUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	users, err := h.access.ServiceUsers(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, users, &Meta{Total: int64(len(users))})
}

// GrantServiceUser handles POST /api/v1/admin/services/{id}/users.
func (h *Handler) GrantServiceUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var body GrantAccessRequest
	if !bindJSON(w, r, &body) {
		return
	}

	req, err := h.access.Grant(r.Context(), actor, body.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, req)
}

// RevokeServiceUser handles DELETE /api/v1/admin/services/{id}/users/{userID}.
func (h *Handler) RevokeServiceUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		WriteBadRequest(w, "Invalid user ID", nil)
		return
	}

	if _, err := h.access.Revoke(r.Context(), actor, userID, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
