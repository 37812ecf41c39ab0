// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package directory resolves users and services by id.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/olegiv/svcportal/internal/model"
	"github.com/olegiv/svcportal/internal/store"
)

// Directory is the read-only lookup of users and services. Lookups of
// unknown ids return a *model.NotFoundError.
type Directory interface {
	GetUser(ctx context.Context, id int64) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetService(ctx context.Context, id string) (model.Service, error)
	ListServices(ctx context.Context) ([]model.Service, error)
}

// SQLDirectory reads users and services from the database.
type SQLDirectory struct {
	queries *store.Queries
}

// New creates a SQLDirectory over db.
func New(db *sql.DB) *SQLDirectory {
	return &SQLDirectory{queries: store.New(db)}
}

// GetUser returns the user with the given id.
func (d *SQLDirectory) GetUser(ctx context.Context, id int64) (model.User, error) {
	u, err := d.queries.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, model.NewNotFoundError("user", fmt.Sprintf("id %d", id))
		}
		return model.User{}, fmt.Errorf("getting user %d: %w", id, err)
	}
	return u.Model(), nil
}

// GetUserByEmail returns the user with the given email.
func (d *SQLDirectory) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := d.queries.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, model.NewNotFoundError("user", email)
		}
		return model.User{}, fmt.Errorf("getting user by email: %w", err)
	}
	return u.Model(), nil
}

// GetService returns the service with the given id.
func (d *SQLDirectory) GetService(ctx context.Context, id string) (model.Service, error) {
	s, err := d.queries.GetService(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Service{}, model.NewNotFoundError("service", id)
		}
		return model.Service{}, fmt.Errorf("getting service %s: %w", id, err)
	}
	return s.Model(), nil
}

// ListServices returns every service ordered by name.
func (d *SQLDirectory) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := d.queries.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}
	out := make([]model.Service, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Model())
	}
	return out, nil
}

var _ Directory = (*SQLDirectory)(nil)
