// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
)

// Conflict reasons.
const (
	ReasonActiveRequestExists = "active_request_exists"
	ReasonAlreadyApproved     = "already_approved"
	ReasonRemovalPending      = "removal_pending"
	ReasonInvalidTransition   = "invalid_transition"
	ReasonAnswerLocked        = "answer_locked"
	ReasonDuplicate           = "duplicate"
	ReasonLastAdmin           = "last_admin"
)

// ValidationError reports malformed input or a missing required field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// ConflictError reports an invariant violation, a no-op transition or a
// write against an answer-locked item.
type ConflictError struct {
	Reason  string
	Message string
}

// NewConflictError creates a ConflictError.
func NewConflictError(reason, message string) *ConflictError {
	return &ConflictError{Reason: reason, Message: message}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict (%s): %s", e.Reason, e.Message)
}

// AuthorizationError reports a failed role or ownership check.
type AuthorizationError struct {
	Message string
}

// NewAuthorizationError creates an AuthorizationError.
func NewAuthorizationError(message string) *AuthorizationError {
	return &AuthorizationError{Message: message}
}

func (e *AuthorizationError) Error() string {
	return "not authorized: " + e.Message
}

// NotFoundError reports an unknown id or a missing prerequisite record.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{Resource: resource, Message: message}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Message)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsConflict reports whether err wraps a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsConflictReason reports whether err wraps a ConflictError with the given reason.
func IsConflictReason(err error, reason string) bool {
	var target *ConflictError
	return errors.As(err, &target) && target.Reason == reason
}

// IsAuthorization reports whether err wraps an AuthorizationError.
func IsAuthorization(err error) bool {
	var target *AuthorizationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}
