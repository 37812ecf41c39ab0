package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/svcportal/internal/model"
	"github.com/olegiv/svcportal/internal/store"
)

// UserService lets admins list users and change their role.
type UserService struct {
	db      *sql.DB
	queries *store.Queries
	logger  *slog.Logger
	now     func() time.Time
}

// NewUserService creates a UserService.
func NewUserService(db *sql.DB, logger *slog.Logger) *UserService {
	return &UserService{
		db:      db,
		queries: store.New(db),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// List returns every user ordered by id.
func (s *UserService) List(ctx context.Context, actor model.Actor) ([]model.User, error) {
	if !actor.IsAdmin() {
		return nil, model.NewAuthorizationError("only admins can list users")
	}
	rows, err := s.queries.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	out := make([]model.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Model())
	}
	return out, nil
}

// SetRole changes the role of user id. The last admin cannot be demoted.
func (s *UserService) SetRole(ctx context.Context, actor model.Actor, id int64, role model.Role) (model.User, error) {
	if !actor.IsAdmin() {
		return model.User{}, model.NewAuthorizationError("only admins can change roles")
	}
	if _, err := model.ParseRole(string(role)); err != nil {
		return model.User{}, err
	}

	var updated store.User
	err := store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		user, err := q.GetUserByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return model.NewNotFoundError("user", fmt.Sprintf("id %d", id))
			}
			return fmt.Errorf("loading user: %w", err)
		}
		if model.Role(user.Role) == role {
			updated = user
			return nil
		}

		if model.Role(user.Role) == model.RoleAdmin {
			admins, err := q.CountUsersByRole(ctx, string(model.RoleAdmin))
			if err != nil {
				return fmt.Errorf("counting admins: %w", err)
			}
			if admins <= 1 {
				return model.NewConflictError(model.ReasonLastAdmin, "cannot demote the last admin")
			}
		}

		if err := q.UpdateUserRole(ctx, store.UpdateUserRoleParams{
			Role:      string(role),
			UpdatedAt: s.now(),
			ID:        id,
		}); err != nil {
			return fmt.Errorf("updating role: %w", err)
		}
		if updated, err = q.GetUserByID(ctx, id); err != nil {
			return fmt.Errorf("reloading user: %w", err)
		}

		return recordEvent(ctx, q, model.EventLevelInfo, model.EventCategoryUser, "User role changed", &actor.ID, "", map[string]any{
			"user_id": id,
			"from":    user.Role,
			"to":      role,
		})
	})
	if err != nil {
		return model.User{}, err
	}
	s.logger.Info("user role set", "user_id", id, "role", role, "by", actor.ID, "category", model.EventCategoryUser)
	return updated.Model(), nil
}
