// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the JSON REST handlers mounted under /api/v1.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/svcportal/internal/directory"
	"github.com/olegiv/svcportal/internal/markdown"
	"github.com/olegiv/svcportal/internal/middleware"
	"github.com/olegiv/svcportal/internal/model"
	"github.com/olegiv/svcportal/internal/service"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Handler holds shared dependencies for the access request, service and
// content handlers.
type Handler struct {
	access   *service.AccessService
	content  *service.ContentService
	dir      directory.Directory
	markdown *markdown.Renderer
	logger   *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(access *service.AccessService, content *service.ContentService, dir directory.Directory, md *markdown.Renderer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		access:   access,
		content:  content,
		dir:      dir,
		markdown: md,
		logger:   logger,
	}
}

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data,omitempty"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains list metadata.
type Meta struct {
	Total int64 `json:"total"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message, nil)
}

// WriteForbidden writes a 403 Forbidden response.
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// WriteValidationError writes a 422 Unprocessable Entity response with field errors.
func WriteValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	WriteError(w, http.StatusUnprocessableEntity, "validation_error", "Validation failed", fieldErrors)
}

// ErrorStatus maps a domain error to its HTTP status and error code.
func ErrorStatus(err error) (int, string) {
	var (
		verr *model.ValidationError
		cerr *model.ConflictError
		aerr *model.AuthorizationError
		nerr *model.NotFoundError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, "validation_error"
	case errors.As(err, &aerr):
		return http.StatusForbidden, "forbidden"
	case errors.As(err, &nerr):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &cerr):
		return http.StatusConflict, cerr.Reason
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeDomainError(w, r, h.logger, err)
}

// writeDomainError writes err as an API error. Unexpected errors are logged
// and reported without their message.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := ErrorStatus(err)

	var verr *model.ValidationError
	if errors.As(err, &verr) {
		field := verr.Field
		if field == "" {
			field = "request"
		}
		WriteValidationError(w, map[string]string{field: verr.Message})
		return
	}

	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"user_id", middleware.GetUserIDPtr(r),
			"error", err,
		)
		WriteInternalError(w, "Internal server error")
		return
	}

	WriteError(w, status, code, domainMessage(err), nil)
}

// domainMessage returns the human message of a typed domain error.
func domainMessage(err error) string {
	var (
		cerr *model.ConflictError
		aerr *model.AuthorizationError
		nerr *model.NotFoundError
	)
	switch {
	case errors.As(err, &cerr):
		return cerr.Message
	case errors.As(err, &aerr):
		return aerr.Message
	case errors.As(err, &nerr):
		return nerr.Resource + " not found"
	}
	return err.Error()
}

// decodeJSON decodes a size-limited JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty")
		}
		return err
	}
	return nil
}

// bindJSON decodes and validates a request body. It writes the error
// response and returns false on failure.
func bindJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeJSON(w, r, v); err != nil {
		WriteBadRequest(w, "Invalid JSON body: "+err.Error(), nil)
		return false
	}
	if fieldErrors := validateStruct(v); len(fieldErrors) > 0 {
		WriteValidationError(w, fieldErrors)
		return false
	}
	return true
}

// parseIDParam parses the {id} URL parameter.
func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// requireID parses {id} or writes a 400 and returns false.
func requireID(w http.ResponseWriter, r *http.Request, entityName string) (int64, bool) {
	id, err := parseIDParam(r)
	if err != nil || id <= 0 {
		WriteBadRequest(w, "Invalid "+entityName+" ID", nil)
		return 0, false
	}
	return id, true
}

// requireActor returns the signed-in actor or writes a 401 and returns false.
func requireActor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := middleware.GetActor(r)
	if !ok {
		WriteUnauthorized(w, "Authentication required")
		return model.Actor{}, false
	}
	return actor, true
}
