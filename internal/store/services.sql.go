package store

import (
	"context"
	"time"
)

const createService = `-- name: CreateService :exec
INSERT INTO services (id, name, description, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
`

type CreateServiceParams struct {
	ID          string
	Name        string
	Description string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (q *Queries) CreateService(ctx context.Context, arg CreateServiceParams) (Service, error) {
	if _, err := q.db.ExecContext(ctx, createService,
		arg.ID,
		arg.Name,
		arg.Description,
		arg.Status,
		arg.CreatedAt,
		arg.UpdatedAt,
	); err != nil {
		return Service{}, err
	}
	return q.GetService(ctx, arg.ID)
}

const getService = `-- name: GetService :one
SELECT id, name, description, status, created_at, updated_at FROM services
WHERE id = ?
`

func (q *Queries) GetService(ctx context.Context, id string) (Service, error) {
	row := q.db.QueryRowContext(ctx, getService, id)
	var i Service
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listServices = `-- name: ListServices :many
SELECT id, name, description, status, created_at, updated_at FROM services
ORDER BY name, id
`

func (q *Queries) ListServices(ctx context.Context) ([]Service, error) {
	return q.queryServices(ctx, listServices)
}

const listServicesByIDs = `-- name: ListEntitledServices :many
SELECT s.id, s.name, s.description, s.status, s.created_at, s.updated_at
FROM services s
JOIN access_requests ar ON ar.service_id = s.id
WHERE ar.user_id = ? AND ar.kind = 'grant' AND ar.status = 'approved'
ORDER BY s.name, s.id
`

// ListEntitledServices returns the services a user holds an approved grant for.
func (q *Queries) ListEntitledServices(ctx context.Context, userID int64) ([]Service, error) {
	return q.queryServices(ctx, listServicesByIDs, userID)
}

const listRequestableServices = `-- name: ListRequestableServices :many
SELECT id, name, description, status, created_at, updated_at FROM services s
WHERE NOT EXISTS (
    SELECT 1 FROM access_requests ar
    WHERE ar.service_id = s.id
      AND ar.user_id = ?
      AND (ar.status IN ('pending', 'remove_pending')
           OR (ar.kind = 'grant' AND ar.status = 'approved'))
)
ORDER BY name, id
`

// ListRequestableServices returns the services a user could submit a new
// request for: no active request and no approved grant.
func (q *Queries) ListRequestableServices(ctx context.Context, userID int64) ([]Service, error) {
	return q.queryServices(ctx, listRequestableServices, userID)
}

func (q *Queries) queryServices(ctx context.Context, query string, args ...any) ([]Service, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []Service
	for rows.Next() {
		var i Service
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Description,
			&i.Status,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateServiceStatus = `-- name: UpdateServiceStatus :execrows
UPDATE services SET status = ?, updated_at = ?
WHERE id = ?
`

type UpdateServiceStatusParams struct {
	Status    string
	UpdatedAt time.Time
	ID        string
}

func (q *Queries) UpdateServiceStatus(ctx context.Context, arg UpdateServiceStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateServiceStatus, arg.Status, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
