package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/svcportal/internal/auth"
	"github.com/olegiv/svcportal/internal/model"
)

// Default admin credentials
const (
	DefaultAdminEmail    = "admin@example.com"
	DefaultAdminPassword = "changeme"
	DefaultAdminName     = "Administrator"
)

// SeedOptions controls what Seed creates.
type SeedOptions struct {
	AdminEmail    string
	AdminPassword string
	// Demo adds a handful of services and member accounts.
	Demo bool
}

var demoServices = []CreateServiceParams{
	{ID: "analytics", Name: "Analytics", Description: "Usage dashboards and reports", Status: string(model.ServiceStatusRunning)},
	{ID: "billing", Name: "Billing", Description: "Invoices and payment history", Status: string(model.ServiceStatusRunning)},
	{ID: "storage", Name: "Object Storage", Description: "Bucket and file management", Status: string(model.ServiceStatusRunning)},
	{ID: "legacy-crm", Name: "Legacy CRM", Description: "Read-only customer archive", Status: string(model.ServiceStatusStopped)},
}

var demoMembers = []struct{ Email, Name string }{
	{"alice@example.com", "Alice"},
	{"bob@example.com", "Bob"},
}

// Seed creates the initial admin account and, when requested, demo data.
// It is idempotent: existing rows are left alone.
func Seed(ctx context.Context, db *sql.DB, opts SeedOptions) error {
	if opts.AdminEmail == "" {
		opts.AdminEmail = DefaultAdminEmail
	}
	if opts.AdminPassword == "" {
		opts.AdminPassword = DefaultAdminPassword
	}

	return RunInTx(ctx, db, func(q *Queries) error {
		if err := seedUser(ctx, q, opts.AdminEmail, opts.AdminPassword, DefaultAdminName, model.RoleAdmin); err != nil {
			return err
		}
		if !opts.Demo {
			return nil
		}

		now := time.Now().UTC()
		for _, svc := range demoServices {
			if _, err := q.GetService(ctx, svc.ID); err == nil {
				continue
			} else if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("checking service %s: %w", svc.ID, err)
			}
			svc.CreatedAt, svc.UpdatedAt = now, now
			if _, err := q.CreateService(ctx, svc); err != nil {
				return fmt.Errorf("creating service %s: %w", svc.ID, err)
			}
			slog.Info("created demo service", "id", svc.ID)
		}

		for _, m := range demoMembers {
			if err := seedUser(ctx, q, m.Email, DefaultAdminPassword, m.Name, model.RoleMember); err != nil {
				return err
			}
		}
		return nil
	})
}

func seedUser(ctx context.Context, q *Queries, email, password, name string, role model.Role) error {
	_, err := q.GetUserByEmail(ctx, email)
	if err == nil {
		slog.Info("user already exists, skipping seed", "email", email)
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking for user %s: %w", email, err)
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	user, err := q.CreateUser(ctx, CreateUserParams{
		Email:        email,
		PasswordHash: passwordHash,
		Role:         string(role),
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("creating user %s: %w", email, err)
	}

	slog.Info("created seed user", "id", user.ID, "email", user.Email, "role", user.Role)
	return nil
}
