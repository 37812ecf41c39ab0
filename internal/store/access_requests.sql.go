package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const accessRequestColumns = `ar.id, ar.user_id, ar.service_id, ar.kind, ar.status, ar.request_date,
    ar.response_date, ar.rejection_reason, ar.resolution, ar.parent_id,
    ar.reviewer_id, ar.admin_created, ar.requested_by, ar.updated_at`

func scanAccessRequest(row interface{ Scan(...any) error }, i *AccessRequest, extra ...any) error {
	dest := []any{
		&i.ID,
		&i.UserID,
		&i.ServiceID,
		&i.Kind,
		&i.Status,
		&i.RequestDate,
		&i.ResponseDate,
		&i.RejectionReason,
		&i.Resolution,
		&i.ParentID,
		&i.ReviewerID,
		&i.AdminCreated,
		&i.RequestedBy,
		&i.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

const createAccessRequest = `-- name: CreateAccessRequest :execlastid
INSERT INTO access_requests (
    user_id, service_id, kind, status, request_date, response_date, parent_id,
    reviewer_id, admin_created, requested_by, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateAccessRequestParams struct {
	UserID       int64
	ServiceID    string
	Kind         string
	Status       string
	RequestDate  time.Time
	ResponseDate *time.Time
	ParentID     *int64
	ReviewerID   *int64
	AdminCreated bool
	RequestedBy  *int64
}

// CreateAccessRequest inserts a request row. The partial unique indexes on
// access_requests reject a second active request for the same pair.
func (q *Queries) CreateAccessRequest(ctx context.Context, arg CreateAccessRequestParams) (AccessRequest, error) {
	result, err := q.db.ExecContext(ctx, createAccessRequest,
		arg.UserID,
		arg.ServiceID,
		arg.Kind,
		arg.Status,
		arg.RequestDate,
		nullTime(arg.ResponseDate),
		nullInt64(arg.ParentID),
		nullInt64(arg.ReviewerID),
		arg.AdminCreated,
		nullInt64(arg.RequestedBy),
		arg.RequestDate,
	)
	if err != nil {
		return AccessRequest{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return AccessRequest{}, err
	}
	return q.GetAccessRequest(ctx, id)
}

const getAccessRequest = `-- name: GetAccessRequest :one
SELECT ` + accessRequestColumns + ` FROM access_requests ar
WHERE ar.id = ?
`

func (q *Queries) GetAccessRequest(ctx context.Context, id int64) (AccessRequest, error) {
	var i AccessRequest
	err := scanAccessRequest(q.db.QueryRowContext(ctx, getAccessRequest, id), &i)
	return i, err
}

const getActiveRequestForPair = `-- name: GetActiveRequestForPair :one
SELECT ` + accessRequestColumns + ` FROM access_requests ar
WHERE ar.user_id = ? AND ar.service_id = ? AND ar.status IN ('pending', 'remove_pending')
`

// GetActiveRequestForPair returns the request awaiting admin action for a
// (user, service) pair, or sql.ErrNoRows.
func (q *Queries) GetActiveRequestForPair(ctx context.Context, userID int64, serviceID string) (AccessRequest, error) {
	var i AccessRequest
	err := scanAccessRequest(q.db.QueryRowContext(ctx, getActiveRequestForPair, userID, serviceID), &i)
	return i, err
}

const getApprovedGrantForPair = `-- name: GetApprovedGrantForPair :one
SELECT ` + accessRequestColumns + ` FROM access_requests ar
WHERE ar.user_id = ? AND ar.service_id = ? AND ar.kind = 'grant' AND ar.status = 'approved'
`

// GetApprovedGrantForPair returns the live entitlement row for a pair, or sql.ErrNoRows.
func (q *Queries) GetApprovedGrantForPair(ctx context.Context, userID int64, serviceID string) (AccessRequest, error) {
	var i AccessRequest
	err := scanAccessRequest(q.db.QueryRowContext(ctx, getApprovedGrantForPair, userID, serviceID), &i)
	return i, err
}

const transitionAccessRequest = `-- name: TransitionAccessRequest :execrows
UPDATE access_requests
SET status = ?, response_date = ?, rejection_reason = ?, resolution = ?, reviewer_id = ?, updated_at = ?
WHERE id = ? AND status = ?
`

type TransitionAccessRequestParams struct {
	ID              int64
	FromStatus      string
	ToStatus        string
	ResponseDate    time.Time
	RejectionReason *string
	Resolution      string
	ReviewerID      int64
}

// TransitionAccessRequest moves a request from FromStatus to ToStatus. It
// returns the number of rows changed, which is zero when the row is no longer
// in FromStatus.
func (q *Queries) TransitionAccessRequest(ctx context.Context, arg TransitionAccessRequestParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, transitionAccessRequest,
		arg.ToStatus,
		arg.ResponseDate,
		nullString(arg.RejectionReason),
		arg.Resolution,
		arg.ReviewerID,
		arg.ResponseDate,
		arg.ID,
		arg.FromStatus,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deletePendingAccessRequest = `-- name: DeletePendingAccessRequest :execrows
DELETE FROM access_requests
WHERE id = ? AND status = 'pending'
`

func (q *Queries) DeletePendingAccessRequest(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deletePendingAccessRequest, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteApprovedGrant = `-- name: DeleteApprovedGrant :execrows
DELETE FROM access_requests
WHERE user_id = ? AND service_id = ? AND kind = 'grant' AND status = 'approved'
`

// DeleteApprovedGrant removes the live entitlement for a pair.
func (q *Queries) DeleteApprovedGrant(ctx context.Context, userID int64, serviceID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteApprovedGrant, userID, serviceID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listAccessRequestDetails = `SELECT ` + accessRequestColumns + `, u.email, s.name
FROM access_requests ar
JOIN users u ON u.id = ar.user_id
JOIN services s ON s.id = ar.service_id
`

const listAccessRequests = `-- name: ListAccessRequests :many
` + listAccessRequestDetails + `ORDER BY ar.request_date DESC, ar.id DESC
`

// ListAccessRequests returns every request, newest first.
func (q *Queries) ListAccessRequests(ctx context.Context) ([]AccessRequestDetailsRow, error) {
	return q.queryAccessRequestDetails(ctx, listAccessRequests)
}

const listAccessRequestsByUser = `-- name: ListAccessRequestsByUser :many
` + listAccessRequestDetails + `WHERE ar.user_id = ?
ORDER BY ar.request_date DESC, ar.id DESC
`

// ListAccessRequestsByUser returns the requests of one user, newest first.
func (q *Queries) ListAccessRequestsByUser(ctx context.Context, userID int64) ([]AccessRequestDetailsRow, error) {
	return q.queryAccessRequestDetails(ctx, listAccessRequestsByUser, userID)
}

const listAccessRequestsByStatus = `-- name: ListAccessRequestsByStatus :many
` + listAccessRequestDetails + `WHERE ar.status = ?
ORDER BY ar.request_date DESC, ar.id DESC
`

// ListAccessRequestsByStatus returns the requests in a given status, newest first.
func (q *Queries) ListAccessRequestsByStatus(ctx context.Context, status string) ([]AccessRequestDetailsRow, error) {
	return q.queryAccessRequestDetails(ctx, listAccessRequestsByStatus, status)
}

func (q *Queries) queryAccessRequestDetails(ctx context.Context, query string, args ...any) ([]AccessRequestDetailsRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []AccessRequestDetailsRow
	for rows.Next() {
		var i AccessRequestDetailsRow
		if err := scanAccessRequest(rows, &i.AccessRequest, &i.UserEmail, &i.ServiceName); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listEntitledUsers = `-- name: ListEntitledUsers :many
SELECT u.id, u.email, u.password_hash, u.role, u.name, u.created_at, u.updated_at
FROM users u
JOIN access_requests ar ON ar.user_id = u.id
WHERE ar.service_id = ? AND ar.kind = 'grant' AND ar.status = 'approved'
ORDER BY u.email
`

// ListEntitledUsers returns the users holding an approved grant for a service.
func (q *Queries) ListEntitledUsers(ctx context.Context, serviceID string) ([]User, error) {
	return q.queryUsers(ctx, listEntitledUsers, serviceID)
}

const listEntitledServiceIDs = `-- name: ListEntitledServiceIDs :many
SELECT service_id FROM access_requests
WHERE user_id = ? AND kind = 'grant' AND status = 'approved'
ORDER BY service_id
`

// ListEntitledServiceIDs returns the ids of services a user is entitled to.
func (q *Queries) ListEntitledServiceIDs(ctx context.Context, userID int64) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listEntitledServiceIDs, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countPendingRequests = `-- name: CountPendingRequests :one
SELECT COUNT(*) FROM access_requests
WHERE status IN ('pending', 'remove_pending')
`

func (q *Queries) CountPendingRequests(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countPendingRequests).Scan(&count)
	return count, err
}

const countPendingRequestsByUser = `-- name: CountPendingRequestsByUser :one
SELECT COUNT(*) FROM access_requests
WHERE user_id = ? AND status IN ('pending', 'remove_pending')
`

func (q *Queries) CountPendingRequestsByUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countPendingRequestsByUser, userID).Scan(&count)
	return count, err
}

// IsNoRows reports whether err is sql.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
