package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/olegiv/svcportal/internal/directory"
	"github.com/olegiv/svcportal/internal/model"
	"github.com/olegiv/svcportal/internal/store"
)

// ContentFilter narrows ContentService.List. Zero values match everything.
type ContentFilter struct {
	PostType  model.PostType
	ServiceID string
	Category  string
	// Mine restricts the list to items authored by the viewer.
	Mine bool
}

// ContentInput holds the fields of a new content item.
type ContentInput struct {
	Title     string
	Content   string
	Category  string
	ServiceID *string
	PostType  model.PostType
	// IsPublished defaults to true when nil.
	IsPublished *bool
}

// ContentPatch holds the fields to change on an item. Nil fields are kept.
// A ServiceID pointing at an empty string detaches the item from its service.
type ContentPatch struct {
	Title       *string
	Content     *string
	Category    *string
	ServiceID   *string
	PostType    *model.PostType
	IsPublished *bool
}

// ContentService manages FAQ entries, notices and inquiries under ContentPolicy.
type ContentService struct {
	db      *sql.DB
	queries *store.Queries
	dir     directory.Directory
	policy  *ContentPolicy
	ents    EntitlementSource
	logger  *slog.Logger
	now     func() time.Time
}

// NewContentService creates a ContentService.
func NewContentService(db *sql.DB, dir directory.Directory, ents EntitlementSource, logger *slog.Logger) *ContentService {
	return &ContentService{
		db:      db,
		queries: store.New(db),
		dir:     dir,
		policy:  NewContentPolicy(ents),
		ents:    ents,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// List returns the items matching filter that viewer may see, newest first.
func (s *ContentService) List(ctx context.Context, viewer model.Actor, filter ContentFilter) ([]model.ContentItem, error) {
	if filter.PostType != "" && !filter.PostType.Valid() {
		return nil, model.NewValidationError("post_type", "post_type must be faq, notice or inquiry")
	}

	params := store.ListContentItemsParams{
		PostType:  string(filter.PostType),
		ServiceID: filter.ServiceID,
		Category:  filter.Category,
	}
	if filter.Mine {
		params.AuthorID = viewer.ID
	}

	rows, err := s.queries.ListContentItems(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("listing content items: %w", err)
	}

	var set EntitledSet
	out := make([]model.ContentItem, 0, len(rows))
	for _, r := range rows {
		item := r.Model()
		if set == nil && needsEntitlements(&item, viewer) {
			if set, err = s.ents.EntitledServices(ctx, viewer.ID); err != nil {
				return nil, err
			}
		}
		if Visible(&item, viewer, set) {
			out = append(out, item)
		}
	}
	return out, nil
}

// Get returns the item with the given id. Items the viewer may not see are
// reported as not found.
func (s *ContentService) Get(ctx context.Context, viewer model.Actor, id int64) (model.ContentItem, error) {
	item, err := s.load(ctx, s.queries, id)
	if err != nil {
		return model.ContentItem{}, err
	}
	ok, err := s.policy.CanView(ctx, &item, viewer)
	if err != nil {
		return model.ContentItem{}, err
	}
	if !ok {
		return model.ContentItem{}, model.NewNotFoundError("content", fmt.Sprintf("id %d", id))
	}
	return item, nil
}

// Create adds a new item authored by actor. Inquiries start in pending status.
func (s *ContentService) Create(ctx context.Context, actor model.Actor, in ContentInput) (model.ContentItem, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.ContentItem{}, model.NewValidationError("title", "title is required")
	}
	if _, err := model.ParsePostType(string(in.PostType)); err != nil {
		return model.ContentItem{}, err
	}
	if !CanSetPostType(in.PostType, actor) {
		return model.ContentItem{}, model.NewAuthorizationError("only admins can publish " + string(in.PostType) + " items")
	}
	serviceID, err := s.resolveService(ctx, in.ServiceID)
	if err != nil {
		return model.ContentItem{}, err
	}

	published := true
	if in.IsPublished != nil {
		published = *in.IsPublished
	}

	var created store.ContentItem
	err = store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		var err error
		created, err = q.CreateContentItem(ctx, store.CreateContentItemParams{
			Title:       title,
			Content:     in.Content,
			Category:    in.Category,
			ServiceID:   serviceID,
			PostType:    string(in.PostType),
			AuthorID:    actor.ID,
			IsPublished: published,
			Status:      initialStatus(in.PostType, model.InquiryStatusNone),
			CreatedAt:   s.now(),
		})
		if err != nil {
			return fmt.Errorf("creating content item: %w", err)
		}
		return s.audit(ctx, q, actor, "Content created", created.ID, in.PostType)
	})
	if err != nil {
		return model.ContentItem{}, err
	}
	return created.Model(), nil
}

// Update applies patch to an item. Items the actor may not see are reported
// as not found.
func (s *ContentService) Update(ctx context.Context, actor model.Actor, id int64, patch ContentPatch) (model.ContentItem, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return model.ContentItem{}, err
	}

	var updated model.ContentItem
	err := store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		item, err := s.load(ctx, q, id)
		if err != nil {
			return err
		}
		if err := AuthorizeMutation(&item, actor, model.OpEdit); err != nil {
			return err
		}

		if patch.Title != nil {
			t := strings.TrimSpace(*patch.Title)
			if t == "" {
				return model.NewValidationError("title", "title cannot be empty")
			}
			item.Title = t
		}
		if patch.Content != nil {
			item.Content = *patch.Content
		}
		if patch.Category != nil {
			item.Category = *patch.Category
		}
		if patch.IsPublished != nil {
			item.IsPublished = *patch.IsPublished
		}
		if patch.PostType != nil && *patch.PostType != item.PostType {
			if _, err := model.ParsePostType(string(*patch.PostType)); err != nil {
				return err
			}
			if !CanSetPostType(*patch.PostType, actor) {
				return model.NewAuthorizationError("only admins can publish " + string(*patch.PostType) + " items")
			}
			item.PostType = *patch.PostType
		}
		if patch.ServiceID != nil {
			if *patch.ServiceID == "" {
				item.ServiceID = nil
			} else if item.ServiceID, err = s.resolveService(ctx, patch.ServiceID); err != nil {
				return err
			}
		}

		if _, err := q.UpdateContentItem(ctx, store.UpdateContentItemParams{
			ID:          item.ID,
			Title:       item.Title,
			Content:     item.Content,
			Category:    item.Category,
			ServiceID:   item.ServiceID,
			PostType:    string(item.PostType),
			IsPublished: item.IsPublished,
			Status:      initialStatus(item.PostType, item.Status),
			UpdatedAt:   s.now(),
		}); err != nil {
			return fmt.Errorf("updating content item: %w", err)
		}

		if updated, err = s.load(ctx, q, id); err != nil {
			return err
		}
		return s.audit(ctx, q, actor, "Content updated", id, updated.PostType)
	})
	if err != nil {
		return model.ContentItem{}, err
	}
	return updated, nil
}

// Delete removes an item. Items the actor may not see are reported as not found.
func (s *ContentService) Delete(ctx context.Context, actor model.Actor, id int64) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}

	return store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		item, err := s.load(ctx, q, id)
		if err != nil {
			return err
		}
		if err := AuthorizeMutation(&item, actor, model.OpDelete); err != nil {
			return err
		}
		if _, err := q.DeleteContentItem(ctx, id); err != nil {
			return fmt.Errorf("deleting content item: %w", err)
		}
		return s.audit(ctx, q, actor, "Content deleted", id, item.PostType)
	})
}

// InquiryAnswer is an admin action on an inquiry. A nil Response keeps the
// current answer unless Clear is set, so a status-only change never lifts the
// answer lock. An empty Status defaults to completed when answering and keeps
// the current status otherwise.
type InquiryAnswer struct {
	Response *string
	Clear    bool
	Status   model.InquiryStatus
}

// Respond applies answer to an inquiry. Clearing the answer unlocks the
// inquiry for its author.
func (s *ContentService) Respond(ctx context.Context, actor model.Actor, id int64, answer InquiryAnswer) (model.ContentItem, error) {
	if !CanSetResponse(actor) {
		return model.ContentItem{}, model.NewAuthorizationError("only admins can answer inquiries")
	}
	if answer.Status != model.InquiryStatusNone && !answer.Status.Valid() {
		return model.ContentItem{}, model.NewValidationError("status", "status must be pending, in_progress, completed or not_applicable")
	}
	if answer.Clear && answer.Response != nil {
		return model.ContentItem{}, model.NewValidationError("response", "response cannot be set and cleared at once")
	}
	if !answer.Clear && answer.Response == nil && answer.Status == model.InquiryStatusNone {
		return model.ContentItem{}, model.NewValidationError("response", "response, clear_response or status is required")
	}

	var updated model.ContentItem
	err := store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		item, err := s.load(ctx, q, id)
		if err != nil {
			return err
		}
		if item.PostType != model.PostTypeInquiry {
			return model.NewValidationError("post_type", "only inquiries can be answered")
		}

		response, respondedBy := item.Response, item.RespondedBy
		message := "Inquiry status changed"
		switch {
		case answer.Clear:
			response, respondedBy = nil, nil
			message = "Inquiry answer cleared"
		case answer.Response != nil:
			response, respondedBy = answer.Response, &actor.ID
			message = "Inquiry answered"
		}

		status := answer.Status
		switch {
		case status != model.InquiryStatusNone:
		case answer.Response != nil:
			status = model.InquiryStatusCompleted
		default:
			status = item.Status
		}

		if _, err := q.SetContentResponse(ctx, store.SetContentResponseParams{
			ID:          id,
			Response:    response,
			RespondedBy: respondedBy,
			Status:      string(status),
			UpdatedAt:   s.now(),
		}); err != nil {
			return fmt.Errorf("saving response: %w", err)
		}

		if updated, err = s.load(ctx, q, id); err != nil {
			return err
		}
		return s.audit(ctx, q, actor, message, id, item.PostType)
	})
	if err != nil {
		return model.ContentItem{}, err
	}
	return updated, nil
}

func (s *ContentService) load(ctx context.Context, q *store.Queries, id int64) (model.ContentItem, error) {
	row, err := q.GetContentItem(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ContentItem{}, model.NewNotFoundError("content", fmt.Sprintf("id %d", id))
		}
		return model.ContentItem{}, fmt.Errorf("loading content item %d: %w", id, err)
	}
	return row.Model(), nil
}

func (s *ContentService) resolveService(ctx context.Context, id *string) (*string, error) {
	if id == nil || *id == "" {
		return nil, nil
	}
	svc, err := s.dir.GetService(ctx, *id)
	if err != nil {
		return nil, err
	}
	return &svc.ID, nil
}

func (s *ContentService) audit(ctx context.Context, q *store.Queries, actor model.Actor, message string, id int64, t model.PostType) error {
	return recordEvent(ctx, q, model.EventLevelInfo, model.EventCategoryContent, message, &actor.ID, "", map[string]any{
		"content_id": id,
		"post_type":  t,
	})
}

// initialStatus returns the status column value for an item of type t:
// inquiries keep current or start pending, other types have none.
func initialStatus(t model.PostType, current model.InquiryStatus) *string {
	if t != model.PostTypeInquiry {
		return nil
	}
	if current == model.InquiryStatusNone {
		current = model.InquiryStatusPending
	}
	st := string(current)
	return &st
}
