package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/svcportal/internal/directory"
	"github.com/olegiv/svcportal/internal/model"
	"github.com/olegiv/svcportal/internal/store"
)

// CatalogService maintains the service catalog. Service status is
// informational and never changes who may access a service.
type CatalogService struct {
	db     *sql.DB
	dir    directory.Directory
	logger *slog.Logger
	now    func() time.Time
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(db *sql.DB, dir directory.Directory, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		db:     db,
		dir:    dir,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetStatus changes the operational status of service id.
func (s *CatalogService) SetStatus(ctx context.Context, actor model.Actor, id string, status model.ServiceStatus) (model.Service, error) {
	if !actor.IsAdmin() {
		return model.Service{}, model.NewAuthorizationError("only admins can change service status")
	}
	if !status.Valid() {
		return model.Service{}, model.NewValidationError("status", "status must be running or stopped")
	}

	err := store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		n, err := q.UpdateServiceStatus(ctx, store.UpdateServiceStatusParams{
			Status:    string(status),
			UpdatedAt: s.now(),
			ID:        id,
		})
		if err != nil {
			return fmt.Errorf("updating service status: %w", err)
		}
		if n == 0 {
			return model.NewNotFoundError("service", id)
		}
		return recordEvent(ctx, q, model.EventLevelInfo, model.EventCategoryConfig, "Service status changed", &actor.ID, "", map[string]any{
			"service_id": id,
			"status":     status,
		})
	})
	if err != nil {
		return model.Service{}, err
	}
	s.logger.Info("service status set", "service_id", id, "status", status, "category", model.EventCategoryConfig)
	return s.dir.GetService(ctx, id)
}
