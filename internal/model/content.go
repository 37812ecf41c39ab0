// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// PostType is the kind of a content item.
type PostType string

// Post types.
const (
	PostTypeFAQ     PostType = "faq"
	PostTypeNotice  PostType = "notice"
	PostTypeInquiry PostType = "inquiry"
)

// Valid reports whether t is a known post type.
func (t PostType) Valid() bool {
	switch t {
	case PostTypeFAQ, PostTypeNotice, PostTypeInquiry:
		return true
	}
	return false
}

// ParsePostType converts a raw string into a PostType.
func ParsePostType(s string) (PostType, error) {
	t := PostType(s)
	if !t.Valid() {
		return "", NewValidationError("post_type", "post_type must be faq, notice or inquiry")
	}
	return t, nil
}

// InquiryStatus is the handling state of an inquiry. Other post types leave it empty.
type InquiryStatus string

// Inquiry statuses.
const (
	InquiryStatusNone          InquiryStatus = ""
	InquiryStatusPending       InquiryStatus = "pending"
	InquiryStatusInProgress    InquiryStatus = "in_progress"
	InquiryStatusCompleted     InquiryStatus = "completed"
	InquiryStatusNotApplicable InquiryStatus = "not_applicable"
)

// Valid reports whether s is a known, non-empty inquiry status.
func (s InquiryStatus) Valid() bool {
	switch s {
	case InquiryStatusPending, InquiryStatusInProgress, InquiryStatusCompleted, InquiryStatusNotApplicable:
		return true
	}
	return false
}

// ParseInquiryStatus converts a raw string into an InquiryStatus.
func ParseInquiryStatus(s string) (InquiryStatus, error) {
	st := InquiryStatus(s)
	if !st.Valid() {
		return "", NewValidationError("status", "status must be pending, in_progress, completed or not_applicable")
	}
	return st, nil
}

// MutationOp is a write operation on an existing content item.
type MutationOp string

// Mutation operations.
const (
	OpEdit   MutationOp = "edit"
	OpDelete MutationOp = "delete"
)

// ContentItem is a FAQ entry, notice or inquiry.
type ContentItem struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	Content     string        `json:"content"`
	Category    string        `json:"category,omitempty"`
	ServiceID   *string       `json:"service_id,omitempty"`
	PostType    PostType      `json:"post_type"`
	AuthorID    int64         `json:"author_id"`
	IsPublished bool          `json:"is_published"`
	Status      InquiryStatus `json:"status,omitempty"`
	Response    *string       `json:"response,omitempty"`
	RespondedBy *int64        `json:"responded_by,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// AnswerLocked reports whether the item is an inquiry that already has an
// admin response. Such items are read-only for their non-admin author.
func (c *ContentItem) AnswerLocked() bool {
	return c.PostType == PostTypeInquiry && c.Response != nil
}

// IsGeneral reports whether the item is not bound to any service.
func (c *ContentItem) IsGeneral() bool {
	return c.ServiceID == nil
}
