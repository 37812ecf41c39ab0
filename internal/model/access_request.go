// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// RequestStatus is the lifecycle state of an access request.
type RequestStatus string

// Access request statuses.
const (
	RequestStatusPending       RequestStatus = "pending"
	RequestStatusApproved      RequestStatus = "approved"
	RequestStatusRejected      RequestStatus = "rejected"
	RequestStatusRemovePending RequestStatus = "remove_pending"
)

// Valid reports whether s is a known request status.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected, RequestStatusRemovePending:
		return true
	}
	return false
}

// AwaitingAdmin reports whether the status still needs an admin decision.
func (s RequestStatus) AwaitingAdmin() bool {
	return s == RequestStatusPending || s == RequestStatusRemovePending
}

// RequestKind distinguishes a request for access from a request to give it up.
type RequestKind string

// Request kinds.
const (
	RequestKindGrant   RequestKind = "grant"
	RequestKindRemoval RequestKind = "removal"
)

// Resolution records how a removal request ended. It is empty for grant
// requests and for removals that are still pending.
type Resolution string

// Removal resolutions.
const (
	ResolutionNone             Resolution = ""
	ResolutionRevoked          Resolution = "revoked"
	ResolutionRevocationDenied Resolution = "revocation_denied"
)

// RejectionReasonRevocationDenied is stored on a removal request whose
// revocation was refused, so the UI can tell it apart from a rejected grant.
const RejectionReasonRevocationDenied = "revocation_denied"

// Decision is an admin verdict on a pending request.
type Decision string

// Admin decisions.
const (
	DecisionApprove Decision = "approved"
	DecisionReject  Decision = "rejected"
)

// ParseDecision converts a raw string into a Decision.
func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionApprove, DecisionReject:
		return Decision(s), nil
	}
	return "", NewValidationError("decision", "decision must be approved or rejected")
}

// AccessRequest is a request by a user to obtain or give up access to a service.
type AccessRequest struct {
	ID              int64         `json:"id"`
	UserID          int64         `json:"user_id"`
	ServiceID       string        `json:"service_id"`
	Kind            RequestKind   `json:"kind"`
	Status          RequestStatus `json:"status"`
	RequestDate     time.Time     `json:"request_date"`
	ResponseDate    *time.Time    `json:"response_date,omitempty"`
	RejectionReason *string       `json:"rejection_reason,omitempty"`
	Resolution      Resolution    `json:"resolution,omitempty"`
	ParentID        *int64        `json:"parent_id,omitempty"`
	ReviewerID      *int64        `json:"reviewer_id,omitempty"`
	AdminCreated    bool          `json:"admin_created"`
	RequestedBy     *int64        `json:"requested_by,omitempty"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// IsEntitlement reports whether the request currently grants access.
func (r *AccessRequest) IsEntitlement() bool {
	return r.Kind == RequestKindGrant && r.Status == RequestStatusApproved
}

// AccessRequestDetails is an access request joined with its user and service.
type AccessRequestDetails struct {
	AccessRequest
	UserEmail   string `json:"user_email"`
	ServiceName string `json:"service_name"`
}
