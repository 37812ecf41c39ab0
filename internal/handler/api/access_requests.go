package api

import (
	"net/http"

	"github.com/olegiv/svcportal/internal/model"
	"github.com/olegiv/svcportal/internal/service"
)

// SubmitAccessRequest is the body of POST /access-requests.
type SubmitAccessRequest struct {
	// UserID defaults to the signed-in user. Only admins may set another id.
	UserID    int64  `json:"user_id" validate:"omitempty,gt=0"`
	ServiceID string `json:"service_id" validate:"required,max=100"`
}

// DecideAccessRequest is the body of PUT /access-requests/{id}.
type DecideAccessRequest struct {
	Decision string  `json:"decision" validate:"required,decision"`
	Reason   *string `json:"reason" validate:"omitempty,max=1000"`
}

// BulkDecideRequest is the body of POST /access-requests/bulk.
type BulkDecideRequest struct {
	IDs      []int64 `json:"ids" validate:"required,min=1,max=500,dive,gt=0"`
	Decision string  `json:"decision" validate:"required,decision"`
	Reason   *string `json:"reason" validate:"omitempty,max=1000"`
}

// BulkItemResponse is the outcome of one id in a bulk decision.
type BulkItemResponse struct {
	ID      int64                `json:"id"`
	Status  int                  `json:"status"`
	Request *model.AccessRequest `json:"request,omitempty"`
	Error   *ErrorDetail         `json:"error,omitempty"`
}

// BulkResponse aggregates a bulk decision.
type BulkResponse struct {
	Items     []BulkItemResponse `json:"items"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
}

// PendingCountResponse is the body of GET /access-requests/pending-count.
type PendingCountResponse struct {
	Count int64 `json:"count"`
}

// SubmitAccessRequest handles POST /api/v1/access-requests.
func (h *Handler) SubmitAccessRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var body SubmitAccessRequest
	if !bindJSON(w, r, &body) {
		return
	}
	if body.UserID == 0 {
		body.UserID = actor.ID
	}

	req, err := h.access.Submit(r.Context(), actor, body.UserID, body.ServiceID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, req)
}

// RequestRemoval handles POST /api/v1/access-requests/{id}/removal. The
// removal targets the approved grant of the (user, service) pair of id.
func (h *Handler) RequestRemoval(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, "access request")
	if !ok {
		return
	}

	req, err := h.access.RequestRemovalOf(r.Context(), actor, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, req)
}

// DecideAccessRequest handles PUT /api/v1/access-requests/{id}.
func (h *Handler) DecideAccessRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, "access request")
	if !ok {
		return
	}

	var body DecideAccessRequest
	if !bindJSON(w, r, &body) {
		return
	}

	req, err := h.access.Decide(r.Context(), actor, id, model.Decision(body.Decision), body.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, req, nil)
}

// BulkDecide handles POST /api/v1/access-requests/bulk.
func (h *Handler) BulkDecide(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var body BulkDecideRequest
	if !bindJSON(w, r, &body) {
		return
	}

	result, err := h.access.BulkApply(r.Context(), actor, body.IDs, model.Decision(body.Decision), body.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, h.bulkResponse(result), nil)
}

func (h *Handler) bulkResponse(result service.BulkResult) BulkResponse {
	resp := BulkResponse{
		Items:     make([]BulkItemResponse, 0, len(result.Items)),
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
	}
	for _, it := range result.Items {
		item := BulkItemResponse{ID: it.ID, Status: http.StatusOK, Request: it.Request}
		if it.Err != nil {
			status, code := ErrorStatus(it.Err)
			message := domainMessage(it.Err)
			if status == http.StatusInternalServerError {
				h.logger.Error("bulk decision failed", "request_id", it.ID, "error", it.Err)
				message = "Internal server error"
			}
			item.Status = status
			item.Error = &ErrorDetail{Code: code, Message: message}
		}
		resp.Items = append(resp.Items, item)
	}
	return resp
}

// CancelAccessRequest handles DELETE /api/v1/access-requests/{id}.
func (h *Handler) CancelAccessRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, "access request")
	if !ok {
		return
	}

	if err := h.access.Cancel(r.Context(), actor, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAccessRequest handles GET /api/v1/access-requests/{id}.
func (h *Handler) GetAccessRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, "access request")
	if !ok {
		return
	}

	req, err := h.access.Get(r.Context(), actor, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, req, nil)
}

// ListAccessRequests handles GET /api/v1/access-requests?scope=mine|all&status=.
func (h *Handler) ListAccessRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	reqs, err := h.access.List(r.Context(), actor, service.ListFilter{
		Scope:  q.Get("scope"),
		Status: model.RequestStatus(q.Get("status")),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, reqs, &Meta{Total: int64(len(reqs))})
}

// PendingCount handles GET /api/v1/access-requests/pending-count.
func (h *Handler) PendingCount(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	n, err := h.access.PendingCount(r.Context(), actor)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, PendingCountResponse{Count: n}, nil)
}
