package api

import (
	"net/http"
	"strconv"

	"github.com/olegiv/svcportal/internal/model"
	"github.com/olegiv/svcportal/internal/service"
)

// ContentResponse is a content item with its Markdown rendered to safe HTML.
type ContentResponse struct {
	model.ContentItem
	ContentHTML  string `json:"content_html"`
	ResponseHTML string `json:"response_html,omitempty"`
}

// CreateContentRequest is the body of POST /content.
type CreateContentRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Content     string  `json:"content" validate:"max=20000"`
	Category    string  `json:"category" validate:"max=100"`
	ServiceID   *string `json:"service_id" validate:"omitempty,max=100"`
	PostType    string  `json:"post_type" validate:"required,post_type"`
	IsPublished *bool   `json:"is_published"`
}

// UpdateContentRequest is the body of PUT /content/{id}. Omitted fields are
// kept; an empty service_id detaches the item from its service.
type UpdateContentRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Content     *string `json:"content" validate:"omitempty,max=20000"`
	Category    *string `json:"category" validate:"omitempty,max=100"`
	ServiceID   *string `json:"service_id" validate:"omitempty,max=100"`
	PostType    *string `json:"post_type" validate:"omitempty,post_type"`
	IsPublished *bool   `json:"is_published"`
}

// RespondContentRequest is the body of PUT /content/{id}/response. An
// omitted or null response keeps the current answer; clear_response removes it.
type RespondContentRequest struct {
	Response      *string `json:"response" validate:"omitempty,max=20000"`
	ClearResponse bool    `json:"clear_response"`
	Status        string  `json:"status" validate:"omitempty,inquiry_status"`
}

func (h *Handler) contentResponse(item model.ContentItem) (ContentResponse, error) {
	resp := ContentResponse{ContentItem: item}

	html, err := h.markdown.Render(item.Content)
	if err != nil {
		return ContentResponse{}, err
	}
	resp.ContentHTML = html

	if item.Response != nil {
		if resp.ResponseHTML, err = h.markdown.Render(*item.Response); err != nil {
			return ContentResponse{}, err
		}
	}
	return resp, nil
}

func (h *Handler) writeContent(w http.ResponseWriter, r *http.Request, status int, item model.ContentItem) {
	resp, err := h.contentResponse(item)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, status, Response{Data: resp})
}

// ListContent handles GET /api/v1/content.
func (h *Handler) ListContent(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := service.ContentFilter{
		PostType:  model.PostType(q.Get("post_type")),
		ServiceID: q.Get("service_id"),
		Category:  q.Get("category"),
	}
	if raw := q.Get("mine"); raw != "" {
		mine, err := strconv.ParseBool(raw)
		if err != nil {
			WriteValidationError(w, map[string]string{"mine": "must be true or false"})
			return
		}
		filter.Mine = mine
	}

	items, err := h.content.List(r.Context(), actor, filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]ContentResponse, 0, len(items))
	for _, item := range items {
		resp, err := h.contentResponse(item)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		out = append(out, resp)
	}
	WriteSuccess(w, out, &Meta{Total: int64(len(out))})
}

// GetContent handles GET /api/v1/content/{id}.
func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, "content")
	if !ok {
		return
	}

	item, err := h.content.Get(r.Context(), actor, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeContent(w, r, http.StatusOK, item)
}

// CreateContent handles POST /api/v1/content.
func (h *Handler) CreateContent(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var body CreateContentRequest
	if !bindJSON(w, r, &body) {
		return
	}

	item, err := h.content.Create(r.Context(), actor, service.ContentInput{
		Title:       body.Title,
		Content:     body.Content,
		Category:    body.Category,
		ServiceID:   body.ServiceID,
		PostType:    model.PostType(body.PostType),
		IsPublished: body.IsPublished,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeContent(w, r, http.StatusCreated, item)
}

// UpdateContent handles PUT /api/v1/content/{id}.
func (h *Handler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, "content")
	if !ok {
		return
	}

	var body UpdateContentRequest
	if !bindJSON(w, r, &body) {
		return
	}

	patch := service.ContentPatch{
		Title:       body.Title,
		Content:     body.Content,
		Category:    body.Category,
		ServiceID:   body.ServiceID,
		IsPublished: body.IsPublished,
	}
	if body.PostType != nil {
		pt := model.PostType(*body.PostType)
		patch.PostType = &pt
	}

	item, err := h.content.Update(r.Context(), actor, id, patch)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeContent(w, r, http.StatusOK, item)
}

// DeleteContent handles DELETE /api/v1/content/{id}.
func (h *Handler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, "content")
	if !ok {
		return
	}

	if err := h.content.Delete(r.Context(), actor, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RespondContent handles PUT /api/v1/content/{id}/response.
func (h *Handler) RespondContent(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, "content")
	if !ok {
		return
	}

	var body RespondContentRequest
	if !bindJSON(w, r, &body) {
		return
	}

	item, err := h.content.Respond(r.Context(), actor, id, service.InquiryAnswer{
		Response: body.Response,
		Clear:    body.ClearResponse,
		Status:   model.InquiryStatus(body.Status),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeContent(w, r, http.StatusOK, item)
}
