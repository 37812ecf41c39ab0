// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// authorization, rate limiting and request hardening.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/svcportal/internal/directory"
	"github.com/olegiv/svcportal/internal/model"
	"github.com/olegiv/svcportal/internal/service"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// ContextKeyUser holds the model.User loaded for the session.
const ContextKeyUser ContextKey = "user"

// SessionKeyUserID is the session key that stores the signed-in user id.
const SessionKeyUserID = "user_id"

// LoadUser creates middleware that loads the session's user from the
// directory on every request, so the role is always the stored one. A
// session pointing at a deleted user is destroyed.
func LoadUser(sm *scs.SessionManager, dir directory.Directory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := sm.GetInt64(r.Context(), SessionKeyUserID)
			if userID == 0 {
				next.ServeHTTP(w, r)
				return
			}

			user, err := dir.GetUser(r.Context(), userID)
			if err != nil {
				if !model.IsNotFound(err) {
					slog.Error("failed to load session user", "user_id", userID, "error", err)
					WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to load user", nil)
					return
				}
				_ = sm.Destroy(r.Context())
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests without a loaded user. Use after LoadUser.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUser(r) == nil {
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects non-admin users with 403. If events is non-nil the
// denial is written to the audit log.
func RequireAdmin(events *service.EventService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r)
			if user == nil {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
				return
			}
			if !user.IsAdmin() {
				slog.Warn("access denied",
					"status", http.StatusForbidden,
					"method", r.Method,
					"path", r.URL.Path,
					"user_role", user.Role,
					"remote_addr", r.RemoteAddr,
					"category", model.EventCategoryAuth,
				)
				if events != nil {
					userID := user.ID
					_ = events.LogAuthEvent(r.Context(), model.EventLevelWarning, "Access denied: admin role required",
						&userID, ClientIP(r), map[string]any{"method": r.Method, "path": r.URL.Path})
				}
				WriteAPIError(w, http.StatusForbidden, "forbidden", "Admin role required", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUser retrieves the current user from the request context.
// Returns nil if no user is in context.
func GetUser(r *http.Request) *model.User {
	user, ok := r.Context().Value(ContextKeyUser).(model.User)
	if !ok {
		return nil
	}
	return &user
}

// GetActor returns the verified actor for the request.
func GetActor(r *http.Request) (model.Actor, bool) {
	user := GetUser(r)
	if user == nil {
		return model.Actor{}, false
	}
	return user.Actor(), true
}

// GetUserIDPtr returns a pointer to the current user's ID, or nil.
// Useful for optional user ID parameters in event logging.
func GetUserIDPtr(r *http.Request) *int64 {
	if user := GetUser(r); user != nil {
		id := user.ID
		return &id
	}
	return nil
}

// WithUser returns a copy of r carrying user, as LoadUser would set it.
func WithUser(r *http.Request, user model.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ContextKeyUser, user))
}
