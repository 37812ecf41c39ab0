package store

import (
	"context"
	"strings"
	"time"
)

const contentItemColumns = `id, title, content, category, service_id, post_type, author_id,
    is_published, status, response, responded_by, created_at, updated_at`

func scanContentItem(row interface{ Scan(...any) error }, i *ContentItem) error {
	return row.Scan(
		&i.ID,
		&i.Title,
		&i.Content,
		&i.Category,
		&i.ServiceID,
		&i.PostType,
		&i.AuthorID,
		&i.IsPublished,
		&i.Status,
		&i.Response,
		&i.RespondedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
}

const createContentItem = `-- name: CreateContentItem :execlastid
INSERT INTO content_items (
    title, content, category, service_id, post_type, author_id, is_published, status, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateContentItemParams struct {
	Title       string
	Content     string
	Category    string
	ServiceID   *string
	PostType    string
	AuthorID    int64
	IsPublished bool
	Status      *string
	CreatedAt   time.Time
}

func (q *Queries) CreateContentItem(ctx context.Context, arg CreateContentItemParams) (ContentItem, error) {
	result, err := q.db.ExecContext(ctx, createContentItem,
		arg.Title,
		arg.Content,
		arg.Category,
		nullString(arg.ServiceID),
		arg.PostType,
		arg.AuthorID,
		arg.IsPublished,
		nullString(arg.Status),
		arg.CreatedAt,
		arg.CreatedAt,
	)
	if err != nil {
		return ContentItem{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return ContentItem{}, err
	}
	return q.GetContentItem(ctx, id)
}

const getContentItem = `-- name: GetContentItem :one
SELECT ` + contentItemColumns + ` FROM content_items
WHERE id = ?
`

func (q *Queries) GetContentItem(ctx context.Context, id int64) (ContentItem, error) {
	var i ContentItem
	err := scanContentItem(q.db.QueryRowContext(ctx, getContentItem, id), &i)
	return i, err
}

// ListContentItemsParams filters ListContentItems. Zero values match everything.
type ListContentItemsParams struct {
	PostType  string
	ServiceID string
	Category  string
	AuthorID  int64
}

const listContentItems = `-- name: ListContentItems :many
SELECT ` + contentItemColumns + ` FROM content_items`

// ListContentItems returns content items matching the filter, newest first.
// Visibility is applied by the caller.
func (q *Queries) ListContentItems(ctx context.Context, arg ListContentItemsParams) ([]ContentItem, error) {
	var (
		where []string
		args  []any
	)
	if arg.PostType != "" {
		where = append(where, "post_type = ?")
		args = append(args, arg.PostType)
	}
	if arg.ServiceID != "" {
		where = append(where, "service_id = ?")
		args = append(args, arg.ServiceID)
	}
	if arg.Category != "" {
		where = append(where, "category = ?")
		args = append(args, arg.Category)
	}
	if arg.AuthorID != 0 {
		where = append(where, "author_id = ?")
		args = append(args, arg.AuthorID)
	}

	query := listContentItems
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY created_at DESC, id DESC"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []ContentItem
	for rows.Next() {
		var i ContentItem
		if err := scanContentItem(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateContentItem = `-- name: UpdateContentItem :execrows
UPDATE content_items
SET title = ?, content = ?, category = ?, service_id = ?, post_type = ?, is_published = ?, status = ?, updated_at = ?
WHERE id = ?
`

type UpdateContentItemParams struct {
	ID          int64
	Title       string
	Content     string
	Category    string
	ServiceID   *string
	PostType    string
	IsPublished bool
	Status      *string
	UpdatedAt   time.Time
}

func (q *Queries) UpdateContentItem(ctx context.Context, arg UpdateContentItemParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateContentItem,
		arg.Title,
		arg.Content,
		arg.Category,
		nullString(arg.ServiceID),
		arg.PostType,
		arg.IsPublished,
		nullString(arg.Status),
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setContentResponse = `-- name: SetContentResponse :execrows
UPDATE content_items
SET response = ?, responded_by = ?, status = ?, updated_at = ?
WHERE id = ? AND post_type = 'inquiry'
`

type SetContentResponseParams struct {
	ID          int64
	Response    *string
	RespondedBy *int64
	Status      string
	UpdatedAt   time.Time
}

// SetContentResponse records an admin answer on an inquiry.
func (q *Queries) SetContentResponse(ctx context.Context, arg SetContentResponseParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setContentResponse,
		nullString(arg.Response),
		nullInt64(arg.RespondedBy),
		arg.Status,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteContentItem = `-- name: DeleteContentItem :execrows
DELETE FROM content_items WHERE id = ?
`

func (q *Queries) DeleteContentItem(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteContentItem, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
