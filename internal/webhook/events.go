// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package webhook delivers access-request lifecycle events to external
// endpoints as signed HTTP POST requests.
package webhook

import (
	"time"

	"github.com/olegiv/svcportal/internal/lifecycle"
)

// Event is the JSON body posted to every endpoint.
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      lifecycle.Event `json:"data"`
}

// NewEvent wraps a lifecycle event into a webhook envelope.
func NewEvent(ev lifecycle.Event) *Event {
	return &Event{
		Type:      ev.Type,
		Timestamp: time.Now().UTC(),
		Data:      ev,
	}
}
