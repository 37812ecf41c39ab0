// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/svcportal/internal/auth"
	"github.com/olegiv/svcportal/internal/directory"
	"github.com/olegiv/svcportal/internal/middleware"
	"github.com/olegiv/svcportal/internal/model"
	"github.com/olegiv/svcportal/internal/service"
)

// AuthHandler handles password login and logout against server-side sessions.
type AuthHandler struct {
	dir             directory.Directory
	sessionManager  *scs.SessionManager
	eventService    *service.EventService
	loginProtection *middleware.LoginProtection
}

// NewAuthHandler creates a new AuthHandler. lp may be nil to disable lockouts.
func NewAuthHandler(dir directory.Directory, sm *scs.SessionManager, events *service.EventService, lp *middleware.LoginProtection) *AuthHandler {
	return &AuthHandler{
		dir:             dir,
		sessionManager:  sm,
		eventService:    events,
		loginProtection: lp,
	}
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body LoginRequest
	if !bindJSON(w, r, &body) {
		return
	}

	clientIP := middleware.ClientIP(r)
	email := body.Email

	if h.loginProtection != nil {
		if locked, remaining := h.loginProtection.IsAccountLocked(email); locked {
			h.logAuth(r, model.EventLevelWarning, "Login attempt on locked account", nil, clientIP, map[string]any{"email": email})
			WriteError(w, http.StatusTooManyRequests, "account_locked",
				"Account temporarily locked, try again in "+formatDuration(remaining), nil)
			return
		}
	}

	user, err := h.dir.GetUserByEmail(r.Context(), email)
	if err != nil {
		if model.IsNotFound(err) {
			slog.Debug("login attempt for non-existent user", "email", email)
			h.logAuth(r, model.EventLevelWarning, "Login failed: user not found", nil, clientIP, map[string]any{"email": email})
			h.rejectLogin(w, r, email, nil, clientIP)
			return
		}
		slog.Error("database error during login", "error", err)
		WriteInternalError(w, "Internal server error")
		return
	}

	valid, err := auth.CheckPassword(body.Password, user.PasswordHash)
	if err != nil {
		slog.Error("password check error", "error", err, "user_id", user.ID)
	}
	if !valid {
		slog.Debug("invalid password attempt", "email", email)
		h.logAuth(r, model.EventLevelWarning, "Login failed: invalid password", &user.ID, clientIP, map[string]any{"email": email})
		h.rejectLogin(w, r, email, &user.ID, clientIP)
		return
	}

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccessfulLogin(email)
	}

	// Regenerate session ID to prevent session fixation
	if err := h.sessionManager.RenewToken(r.Context()); err != nil {
		slog.Error("session renewal error", "error", err)
		WriteInternalError(w, "Internal server error")
		return
	}
	h.sessionManager.Put(r.Context(), middleware.SessionKeyUserID, user.ID)

	slog.Info("user logged in", "user_id", user.ID, "email", user.Email)
	h.logAuth(r, model.EventLevelInfo, "User logged in", &user.ID, clientIP, map[string]any{"email": user.Email})

	WriteSuccess(w, user, nil)
}

// rejectLogin records a failed attempt and writes the 401 or lockout response.
func (h *AuthHandler) rejectLogin(w http.ResponseWriter, r *http.Request, email string, userID *int64, clientIP string) {
	if h.loginProtection != nil {
		if locked, lockDuration := h.loginProtection.RecordFailedAttempt(email); locked {
			h.logAuth(r, model.EventLevelWarning, "Account locked due to failed attempts", userID, clientIP,
				map[string]any{"email": email, "duration": lockDuration.String()})
			WriteError(w, http.StatusTooManyRequests, "account_locked",
				"Too many failed attempts, try again in "+formatDuration(lockDuration), nil)
			return
		}
		remaining := h.loginProtection.RemainingAttempts(email)
		if remaining <= 3 && remaining > 0 {
			WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password",
				map[string]string{"remaining_attempts": fmt.Sprint(remaining)})
			return
		}
	}
	WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password", nil)
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := h.sessionManager.GetInt64(r.Context(), middleware.SessionKeyUserID)
	if userID > 0 {
		h.logAuth(r, model.EventLevelInfo, "User logged out", &userID, middleware.ClientIP(r), nil)
	}

	if err := h.sessionManager.Destroy(r.Context()); err != nil {
		slog.Error("session destroy error", "error", err)
	}

	slog.Info("user logged out", "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Authentication required")
		return
	}
	WriteSuccess(w, user, nil)
}

func (h *AuthHandler) logAuth(r *http.Request, level, message string, userID *int64, clientIP string, metadata map[string]any) {
	if h.eventService == nil {
		return
	}
	if err := h.eventService.LogAuthEvent(r.Context(), level, message, userID, clientIP, metadata); err != nil {
		slog.Warn("failed to record auth event", "error", err)
	}
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	hours := int(d.Hours())
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
