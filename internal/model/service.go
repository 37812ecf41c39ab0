// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// ServiceStatus is the operational status of a service. It is informational
// only and never gates access.
type ServiceStatus string

// Service statuses.
const (
	ServiceStatusRunning ServiceStatus = "running"
	ServiceStatusStopped ServiceStatus = "stopped"
)

// Valid reports whether s is a known service status.
func (s ServiceStatus) Valid() bool {
	return s == ServiceStatusRunning || s == ServiceStatusStopped
}

// Service is an entry of the service catalog.
type Service struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Status      ServiceStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
