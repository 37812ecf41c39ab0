// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/olegiv/svcportal/internal/model"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, map[string]string{"key": "value"})

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got %s", ct)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp["key"] != "value" {
		t.Errorf("expected key 'value', got %s", resp["key"])
	}
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]string{"name": "test"}, &Meta{Total: 100})

	assertStatusCode(t, w, http.StatusOK)

	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Meta == nil || resp.Meta.Total != 100 {
		t.Errorf("meta = %+v, want total 100", resp.Meta)
	}
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()
	WriteCreated(w, map[string]string{"id": "123"})
	assertStatusCode(t, w, http.StatusCreated)
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusBadRequest, "bad_request", "Invalid input", map[string]string{"field": "name"})

	assertStatusCode(t, w, http.StatusBadRequest)
	resp := assertErrorResponse(t, w, "bad_request")
	if resp.Error.Message != "Invalid input" {
		t.Errorf("expected message 'Invalid input', got %s", resp.Error.Message)
	}
	if resp.Error.Details["field"] != "name" {
		t.Errorf("expected details.field 'name', got %s", resp.Error.Details["field"])
	}
}

func TestWriteHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		code   string
	}{
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, "Bad input", nil) }, http.StatusBadRequest, "bad_request"},
		{"not found", func(w http.ResponseWriter) { WriteNotFound(w, "missing") }, http.StatusNotFound, "not_found"},
		{"unauthorized", func(w http.ResponseWriter) { WriteUnauthorized(w, "no") }, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", func(w http.ResponseWriter) { WriteForbidden(w, "no") }, http.StatusForbidden, "forbidden"},
		{"internal", func(w http.ResponseWriter) { WriteInternalError(w, "oops") }, http.StatusInternalServerError, "internal_error"},
		{"validation", func(w http.ResponseWriter) { WriteValidationError(w, map[string]string{"a": "b"}) }, http.StatusUnprocessableEntity, "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)
			assertStatusCode(t, w, tt.status)
			assertErrorResponse(t, w, tt.code)
		})
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", model.NewValidationError("service_id", "required"), http.StatusUnprocessableEntity, "validation_error"},
		{"authorization", model.NewAuthorizationError("admins only"), http.StatusForbidden, "forbidden"},
		{"not found", model.NewNotFoundError("service", "svc-x"), http.StatusNotFound, "not_found"},
		{"conflict reason", model.NewConflictError(model.ReasonAlreadyApproved, "dup"), http.StatusConflict, model.ReasonAlreadyApproved},
		{"wrapped conflict", fmt.Errorf("submit: %w", model.NewConflictError(model.ReasonRemovalPending, "x")), http.StatusConflict, model.ReasonRemovalPending},
		{"unknown", errors.New("disk I/O error"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := ErrorStatus(tt.err)
			if status != tt.status || code != tt.code {
				t.Errorf("ErrorStatus() = %d %q, want %d %q", status, code, tt.status, tt.code)
			}
		})
	}
}

func TestWriteServiceError_HidesInternalErrors(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil, nil)
	w := httptest.NewRecorder()
	h.writeServiceError(w, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("SQL logic error near SELECT"))

	assertStatusCode(t, w, http.StatusInternalServerError)
	resp := assertErrorResponse(t, w, "internal_error")
	if resp.Error.Message != "Internal server error" {
		t.Errorf("message = %q, leaked internal detail", resp.Error.Message)
	}
}

func TestWriteServiceError_ValidationDetails(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil, nil)
	w := httptest.NewRecorder()
	h.writeServiceError(w, httptest.NewRequest(http.MethodGet, "/", nil), model.NewValidationError("title", "title is required"))

	assertStatusCode(t, w, http.StatusUnprocessableEntity)
	resp := assertErrorResponse(t, w, "validation_error")
	if resp.Error.Details["title"] != "title is required" {
		t.Errorf("details = %v", resp.Error.Details)
	}
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name   string
		v      any
		fields []string
	}{
		{"valid submit", &SubmitAccessRequest{ServiceID: "svc-1"}, nil},
		{"missing service", &SubmitAccessRequest{}, []string{"service_id"}},
		{"negative user", &SubmitAccessRequest{UserID: -1, ServiceID: "svc-1"}, []string{"user_id"}},
		{"bad decision", &DecideAccessRequest{Decision: "maybe"}, []string{"decision"}},
		{"valid decision", &DecideAccessRequest{Decision: "approved"}, nil},
		{"empty bulk", &BulkDecideRequest{Decision: "rejected"}, []string{"ids"}},
		{"bad post type", &CreateContentRequest{Title: "t", PostType: "blog"}, []string{"post_type"}},
		{"bad email", &LoginRequest{Email: "nope", Password: "x"}, []string{"email"}},
		{"bad inquiry status", &RespondContentRequest{Status: "done"}, []string{"status"}},
		{"empty respond", &RespondContentRequest{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := validateStruct(tt.v)
			if len(got) != len(tt.fields) {
				t.Fatalf("validateStruct() = %v, want fields %v", got, tt.fields)
			}
			for _, f := range tt.fields {
				if _, ok := got[f]; !ok {
					t.Errorf("missing error for %q in %v", f, got)
				}
			}
		})
	}
}
