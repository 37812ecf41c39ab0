// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/svcportal/internal/middleware"
	"github.com/olegiv/svcportal/internal/model"
	"github.com/olegiv/svcportal/internal/scheduler"
	"github.com/olegiv/svcportal/internal/service"
)

// EventsPerPage is the default number of events returned per page.
const EventsPerPage = 25

// maxEventsPerPage caps the per_page query parameter.
const maxEventsPerPage = 200

// JobRunner lists and triggers maintenance jobs.
type JobRunner interface {
	List() []scheduler.JobInfo
	TriggerNow(name string) error
}

// AdminHandler serves the audit log and maintenance job endpoints.
type AdminHandler struct {
	events *service.EventService
	jobs   JobRunner
}

// NewAdminHandler creates a new AdminHandler. jobs may be nil when the
// scheduler is not running.
func NewAdminHandler(events *service.EventService, jobs JobRunner) *AdminHandler {
	return &AdminHandler{events: events, jobs: jobs}
}

// EventResponse is an audit event with its metadata flattened for display.
type EventResponse struct {
	model.Event
	UserID  *int64 `json:"user_id,omitempty"`
	Details string `json:"details,omitempty"`
}

// formatMetadata converts JSON metadata to readable text.
// Example: {"path":"/x","error":"not found"} -> "error: not found, path: /x"
func formatMetadata(metadata string) string {
	if metadata == "" || metadata == "{}" {
		return ""
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(metadata), &data); err != nil {
		return metadata
	}
	if len(data) == 0 {
		return ""
	}

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		var value string
		switch v := data[key].(type) {
		case string:
			value = v
		case float64:
			value = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			value = strconv.FormatBool(v)
		default:
			if b, err := json.Marshal(v); err == nil {
				value = string(b)
			}
		}
		parts = append(parts, key+": "+value)
	}
	return strings.Join(parts, ", ")
}

// parsePage reads page and per_page query parameters.
func parsePage(r *http.Request) (page, perPage int64, err error) {
	page, perPage = 1, EventsPerPage
	q := r.URL.Query()
	if raw := q.Get("page"); raw != "" {
		if page, err = strconv.ParseInt(raw, 10, 64); err != nil || page < 1 {
			return 0, 0, model.NewValidationError("page", "page must be a positive integer")
		}
	}
	if raw := q.Get("per_page"); raw != "" {
		if perPage, err = strconv.ParseInt(raw, 10, 64); err != nil || perPage < 1 || perPage > maxEventsPerPage {
			return 0, 0, model.NewValidationError("per_page", "per_page must be between 1 and "+strconv.Itoa(maxEventsPerPage))
		}
	}
	return page, perPage, nil
}

// ListEvents handles GET /api/v1/admin/events?category=&page=&per_page=.
func (h *AdminHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := parsePage(r)
	if err != nil {
		var ve *model.ValidationError
		errors.As(err, &ve)
		WriteValidationError(w, map[string]string{ve.Field: ve.Message})
		return
	}

	events, err := h.events.ListEvents(r.Context(), r.URL.Query().Get("category"), perPage, (page-1)*perPage)
	if err != nil {
		slog.Error("failed to list events", "error", err)
		WriteInternalError(w, "Internal server error")
		return
	}

	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		resp := EventResponse{Event: e, Details: formatMetadata(e.Metadata)}
		if e.UserID.Valid {
			id := e.UserID.Int64
			resp.UserID = &id
		}
		out = append(out, resp)
	}
	WriteSuccess(w, out, &Meta{Total: int64(len(out))})
}

// ListJobs handles GET /api/v1/admin/jobs.
func (h *AdminHandler) ListJobs(w http.ResponseWriter, _ *http.Request) {
	if h.jobs == nil {
		WriteSuccess(w, []scheduler.JobInfo{}, &Meta{})
		return
	}
	jobs := h.jobs.List()
	WriteSuccess(w, jobs, &Meta{Total: int64(len(jobs))})
}

// TriggerJob handles POST /api/v1/admin/jobs/{name}/run.
func (h *AdminHandler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.jobs == nil {
		WriteNotFound(w, "Job not found")
		return
	}

	if err := h.jobs.TriggerNow(name); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			WriteNotFound(w, "Job not found")
			return
		}
		slog.Error("failed to trigger job", "error", err, "name", name)
		WriteError(w, http.StatusBadGateway, "job_failed", err.Error(), nil)
		return
	}

	if h.events != nil {
		_ = h.events.LogEvent(r.Context(), model.EventLevelInfo, model.EventCategorySystem,
			"Job manually triggered: "+name, middleware.GetUserIDPtr(r), middleware.ClientIP(r),
			map[string]any{"name": name})
	}
	actor, _ := middleware.GetActor(r)
	slog.Info("job triggered", "name", name, "triggered_by", actor.ID)
	w.WriteHeader(http.StatusNoContent)
}
