package service

import (
	"context"

	"github.com/olegiv/svcportal/internal/model"
)

// ContentPolicy decides who may see and change content items.
type ContentPolicy struct {
	entitlements EntitlementSource
}

// NewContentPolicy creates a policy that resolves entitlements through src.
func NewContentPolicy(src EntitlementSource) *ContentPolicy {
	return &ContentPolicy{entitlements: src}
}

// CanView reports whether viewer may see item. Entitlements are resolved
// only when the decision depends on them.
func (p *ContentPolicy) CanView(ctx context.Context, item *model.ContentItem, viewer model.Actor) (bool, error) {
	if !needsEntitlements(item, viewer) {
		return Visible(item, viewer, nil), nil
	}
	set, err := p.entitlements.EntitledServices(ctx, viewer.ID)
	if err != nil {
		return false, err
	}
	return Visible(item, viewer, set), nil
}

// Visible applies the visibility rules in order:
//  1. admins see everything
//  2. authors always see their own inquiries, published or not
//  3. unpublished items are hidden
//  4. items not bound to a service are visible to everyone
//  5. service-bound items are visible to users entitled to that service
func Visible(item *model.ContentItem, viewer model.Actor, set EntitledSet) bool {
	switch {
	case viewer.IsAdmin():
		return true
	case item.PostType == model.PostTypeInquiry && item.AuthorID == viewer.ID:
		return true
	case !item.IsPublished:
		return false
	case item.IsGeneral():
		return true
	default:
		return set.Has(*item.ServiceID)
	}
}

func needsEntitlements(item *model.ContentItem, viewer model.Actor) bool {
	if viewer.IsAdmin() || !item.IsPublished || item.IsGeneral() {
		return false
	}
	return !(item.PostType == model.PostTypeInquiry && item.AuthorID == viewer.ID)
}

// CanMutate reports whether actor may apply op to item.
func CanMutate(item *model.ContentItem, actor model.Actor, op model.MutationOp) bool {
	return AuthorizeMutation(item, actor, op) == nil
}

// AuthorizeMutation returns nil when actor may apply op to item, an
// AuthorizationError for non-authors and a ConflictError for answer-locked
// inquiries.
func AuthorizeMutation(item *model.ContentItem, actor model.Actor, op model.MutationOp) error {
	if actor.IsAdmin() {
		return nil
	}
	if item.AuthorID != actor.ID {
		return model.NewAuthorizationError("only the author can " + string(op) + " this item")
	}
	if item.AnswerLocked() {
		return model.NewConflictError(model.ReasonAnswerLocked, "inquiry has been answered and can no longer be changed")
	}
	return nil
}

// CanSetPostType reports whether actor may create or convert an item to t.
// FAQ entries and notices are admin only.
func CanSetPostType(t model.PostType, actor model.Actor) bool {
	if t == model.PostTypeInquiry {
		return true
	}
	return actor.IsAdmin()
}

// CanSetResponse reports whether actor may answer inquiries and set their status.
func CanSetResponse(actor model.Actor) bool {
	return actor.IsAdmin()
}
