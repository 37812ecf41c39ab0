// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/olegiv/svcportal/internal/model"
	"github.com/olegiv/svcportal/internal/testutil"
)

func TestNewEventService(t *testing.T) {
	db := testutil.TestDB(t)

	svc := NewEventService(db)
	if svc == nil {
		t.Error("NewEventService returned nil")
	}
}

func TestLogEvent(t *testing.T) {
	db := testutil.TestDB(t)
	user := testutil.CreateUser(t, db, model.RoleMember)

	svc := NewEventService(db)
	ctx := context.Background()

	err := svc.LogEvent(ctx, model.EventLevelInfo, model.EventCategoryAccess, "Test message", &user.ID, "192.168.1.100", map[string]any{
		"key": "value",
	})
	if err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		t.Fatalf("failed to count events: %v", err)
	}
	if count != 1 {
		t.Errorf("event count = %d, want 1", count)
	}

	var level, category, message, metadata, ip string
	var savedUserID sql.NullInt64
	err = db.QueryRow("SELECT level, category, message, user_id, metadata, ip_address FROM events").
		Scan(&level, &category, &message, &savedUserID, &metadata, &ip)
	if err != nil {
		t.Fatalf("failed to read event: %v", err)
	}

	if level != "info" {
		t.Errorf("level = %q, want %q", level, "info")
	}
	if category != "access" {
		t.Errorf("category = %q, want %q", category, "access")
	}
	if message != "Test message" {
		t.Errorf("message = %q, want %q", message, "Test message")
	}
	if !savedUserID.Valid || savedUserID.Int64 != user.ID {
		t.Errorf("user_id = %v, want %d", savedUserID, user.ID)
	}
	if metadata != `{"key":"value"}` {
		t.Errorf("metadata = %q, want %q", metadata, `{"key":"value"}`)
	}
	if ip != "192.168.1.100" {
		t.Errorf("ip_address = %q, want %q", ip, "192.168.1.100")
	}
}

func TestLogEvent_NilUserIDAndMetadata(t *testing.T) {
	db := testutil.TestDB(t)

	svc := NewEventService(db)
	if err := svc.LogEvent(context.Background(), model.EventLevelWarning, model.EventCategorySystem, "No user", nil, "", nil); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	var userID sql.NullInt64
	var metadata string
	if err := db.QueryRow("SELECT user_id, metadata FROM events").Scan(&userID, &metadata); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if userID.Valid {
		t.Errorf("user_id should be NULL, got %d", userID.Int64)
	}
	if metadata != "{}" {
		t.Errorf("metadata = %q, want %q", metadata, "{}")
	}
}

func TestLogAuthEvent(t *testing.T) {
	db := testutil.TestDB(t)

	svc := NewEventService(db)
	ctx := context.Background()

	if err := svc.LogAuthEvent(ctx, model.EventLevelWarning, "Login failed", nil, "10.0.0.1", map[string]any{"email": "x@example.com"}); err != nil {
		t.Fatalf("LogAuthEvent failed: %v", err)
	}
	if err := svc.LogEvent(ctx, model.EventLevelInfo, model.EventCategorySystem, "Started", nil, "", nil); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	events, err := svc.ListEvents(ctx, model.EventCategoryAuth, 10, 0)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("auth events = %d, want 1", len(events))
	}
	if events[0].Message != "Login failed" {
		t.Errorf("message = %q, want %q", events[0].Message, "Login failed")
	}

	all, err := svc.ListEvents(ctx, "", 10, 0)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all events = %d, want 2", len(all))
	}
	if all[0].Message != "Started" {
		t.Errorf("newest event = %q, want %q", all[0].Message, "Started")
	}
}

func TestLogLevels(t *testing.T) {
	db := testutil.TestDB(t)

	svc := NewEventService(db)
	ctx := context.Background()

	for _, level := range []string{model.EventLevelInfo, model.EventLevelWarning, model.EventLevelError} {
		if err := svc.LogEvent(ctx, level, model.EventCategorySystem, "Test "+level, nil, "", nil); err != nil {
			t.Errorf("LogEvent(%s) failed: %v", level, err)
		}
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		t.Fatalf("failed to count events: %v", err)
	}
	if count != 3 {
		t.Errorf("event count = %d, want 3", count)
	}
}

func TestDeleteOldEvents(t *testing.T) {
	db := testutil.TestDB(t)

	svc := NewEventService(db)
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	if _, err := db.Exec(`INSERT INTO events (level, category, message, created_at) VALUES ('info', 'system', 'old', ?)`, old); err != nil {
		t.Fatalf("failed to insert old event: %v", err)
	}
	if err := svc.LogEvent(ctx, model.EventLevelInfo, model.EventCategorySystem, "new", nil, "", nil); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	deleted, err := svc.DeleteOldEvents(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("DeleteOldEvents failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	events, err := svc.ListEvents(ctx, "", 10, 0)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].Message != "new" {
		t.Errorf("remaining events = %+v, want only %q", events, "new")
	}
}
