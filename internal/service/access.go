// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/olegiv/svcportal/internal/directory"
	"github.com/olegiv/svcportal/internal/lifecycle"
	"github.com/olegiv/svcportal/internal/model"
	"github.com/olegiv/svcportal/internal/store"
)

// BulkConcurrency bounds how many ids BulkApply processes at once.
const BulkConcurrency = 4

// Request list scopes.
const (
	ScopeMine = "mine"
	ScopeAll  = "all"
)

// AccessService owns every access-request state transition.
//
// Each change to a (user, service) pair runs under an in-process pair lock
// and inside a BEGIN IMMEDIATE transaction. Status changes are
// compare-and-set on the previous status, and the partial unique indexes on
// access_requests reject a second active request or a second approved grant
// even across processes.
type AccessService struct {
	db           *sql.DB
	queries      *store.Queries
	dir          directory.Directory
	entitlements *EntitlementResolver
	publisher    lifecycle.Publisher
	locks        *pairLocks
	logger       *slog.Logger
	now          func() time.Time
}

// NewAccessService creates an AccessService. publisher may be nil.
func NewAccessService(db *sql.DB, dir directory.Directory, entitlements *EntitlementResolver, publisher lifecycle.Publisher, logger *slog.Logger) *AccessService {
	return &AccessService{
		db:           db,
		queries:      store.New(db),
		dir:          dir,
		entitlements: entitlements,
		publisher:    publisher,
		locks:        newPairLocks(),
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// BulkItemResult is the outcome of one id in a BulkApply call.
type BulkItemResult struct {
	ID      int64                `json:"id"`
	Request *model.AccessRequest `json:"request,omitempty"`
	Err     error                `json:"-"`
}

// BulkResult aggregates the per-id outcomes of BulkApply, in input order.
type BulkResult struct {
	Items     []BulkItemResult `json:"items"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

// Submit creates a pending grant request for userID on serviceID. Members
// submit for themselves; an admin may submit for any user, which marks the
// request as admin-created.
func (s *AccessService) Submit(ctx context.Context, actor model.Actor, userID int64, serviceID string) (model.AccessRequest, error) {
	if userID <= 0 {
		return model.AccessRequest{}, model.NewValidationError("user_id", "user_id is required")
	}
	if serviceID == "" {
		return model.AccessRequest{}, model.NewValidationError("service_id", "service_id is required")
	}
	if actor.ID != userID && !actor.IsAdmin() {
		return model.AccessRequest{}, model.NewAuthorizationError("members may only request access for themselves")
	}
	if _, err := s.dir.GetUser(ctx, userID); err != nil {
		return model.AccessRequest{}, err
	}
	if _, err := s.dir.GetService(ctx, serviceID); err != nil {
		return model.AccessRequest{}, err
	}

	unlock := s.locks.lock(userID, serviceID)
	defer unlock()

	var created store.AccessRequest
	err := store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		if err := ensureNoActiveRequest(ctx, q, userID, serviceID); err != nil {
			return err
		}
		if _, err := q.GetApprovedGrantForPair(ctx, userID, serviceID); err == nil {
			return model.NewConflictError(model.ReasonAlreadyApproved, "access to this service is already approved")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking approved grant: %w", err)
		}

		var err error
		created, err = q.CreateAccessRequest(ctx, store.CreateAccessRequestParams{
			UserID:       userID,
			ServiceID:    serviceID,
			Kind:         string(model.RequestKindGrant),
			Status:       string(model.RequestStatusPending),
			RequestDate:  s.now(),
			AdminCreated: actor.ID != userID,
			RequestedBy:  &actor.ID,
		})
		if err != nil {
			if store.IsUniqueViolation(err) {
				return model.NewConflictError(model.ReasonActiveRequestExists, "an active request already exists for this service")
			}
			return fmt.Errorf("creating access request: %w", err)
		}

		return s.audit(ctx, q, actor, "Access requested", created.Model())
	})
	if err != nil {
		return model.AccessRequest{}, err
	}

	req := created.Model()
	s.publish(req, false)
	return req, nil
}

// RequestRemoval asks for the approved grant of userID on serviceID to be
// revoked. Access remains in force until an admin approves the removal.
func (s *AccessService) RequestRemoval(ctx context.Context, actor model.Actor, userID int64, serviceID string) (model.AccessRequest, error) {
	if actor.ID != userID && !actor.IsAdmin() {
		return model.AccessRequest{}, model.NewAuthorizationError("members may only give up their own access")
	}

	unlock := s.locks.lock(userID, serviceID)
	defer unlock()

	var created store.AccessRequest
	err := store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		grant, err := q.GetApprovedGrantForPair(ctx, userID, serviceID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return model.NewNotFoundError("approved_access", "no approved access for this service")
			}
			return fmt.Errorf("loading approved grant: %w", err)
		}
		if err := ensureNoActiveRequest(ctx, q, userID, serviceID); err != nil {
			return err
		}

		created, err = q.CreateAccessRequest(ctx, store.CreateAccessRequestParams{
			UserID:       userID,
			ServiceID:    serviceID,
			Kind:         string(model.RequestKindRemoval),
			Status:       string(model.RequestStatusRemovePending),
			RequestDate:  s.now(),
			ParentID:     &grant.ID,
			AdminCreated: actor.ID != userID,
			RequestedBy:  &actor.ID,
		})
		if err != nil {
			if store.IsUniqueViolation(err) {
				return model.NewConflictError(model.ReasonRemovalPending, "a removal request is already pending")
			}
			return fmt.Errorf("creating removal request: %w", err)
		}

		return s.audit(ctx, q, actor, "Access removal requested", created.Model())
	})
	if err != nil {
		return model.AccessRequest{}, err
	}

	req := created.Model()
	s.publish(req, false)
	return req, nil
}

// RequestRemovalOf starts a removal for the (user, service) pair of the
// request with the given id. It fails with a NotFoundError when the pair has
// no approved grant.
func (s *AccessService) RequestRemovalOf(ctx context.Context, actor model.Actor, id int64) (model.AccessRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return model.AccessRequest{}, err
	}
	return s.RequestRemoval(ctx, actor, req.UserID, req.ServiceID)
}

// Grant gives userID access to serviceID directly, without a pending step.
// The resulting row is an approved, admin-created grant.
func (s *AccessService) Grant(ctx context.Context, actor model.Actor, userID int64, serviceID string) (model.AccessRequest, error) {
	if !actor.IsAdmin() {
		return model.AccessRequest{}, model.NewAuthorizationError("only admins can grant access directly")
	}
	if _, err := s.dir.GetUser(ctx, userID); err != nil {
		return model.AccessRequest{}, err
	}
	if _, err := s.dir.GetService(ctx, serviceID); err != nil {
		return model.AccessRequest{}, err
	}

	unlock := s.locks.lock(userID, serviceID)
	defer unlock()

	var created store.AccessRequest
	err := store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		if _, err := q.GetApprovedGrantForPair(ctx, userID, serviceID); err == nil {
			return model.NewConflictError(model.ReasonAlreadyApproved, "access to this service is already approved")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking approved grant: %w", err)
		}
		if err := ensureNoActiveRequest(ctx, q, userID, serviceID); err != nil {
			return err
		}

		now := s.now()
		var err error
		created, err = q.CreateAccessRequest(ctx, store.CreateAccessRequestParams{
			UserID:       userID,
			ServiceID:    serviceID,
			Kind:         string(model.RequestKindGrant),
			Status:       string(model.RequestStatusApproved),
			RequestDate:  now,
			ResponseDate: &now,
			ReviewerID:   &actor.ID,
			AdminCreated: true,
			RequestedBy:  &actor.ID,
		})
		if err != nil {
			if store.IsUniqueViolation(err) {
				return model.NewConflictError(model.ReasonAlreadyApproved, "access to this service is already approved")
			}
			return fmt.Errorf("creating grant: %w", err)
		}

		return s.audit(ctx, q, actor, "Access granted", created.Model())
	})
	if err != nil {
		return model.AccessRequest{}, err
	}

	req := created.Model()
	s.entitlements.Invalidate(ctx, userID)
	s.publish(req, false)
	return req, nil
}

// Revoke removes the approved grant of userID on serviceID at once. A
// pending removal for the pair is resolved as revoked.
func (s *AccessService) Revoke(ctx context.Context, actor model.Actor, userID int64, serviceID string) (model.AccessRequest, error) {
	if !actor.IsAdmin() {
		return model.AccessRequest{}, model.NewAuthorizationError("only admins can revoke access directly")
	}

	unlock := s.locks.lock(userID, serviceID)
	defer unlock()

	var grant store.AccessRequest
	err := store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		var err error
		grant, err = q.GetApprovedGrantForPair(ctx, userID, serviceID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return model.NewNotFoundError("approved_access", "no approved access for this service")
			}
			return fmt.Errorf("loading approved grant: %w", err)
		}

		active, err := q.GetActiveRequestForPair(ctx, userID, serviceID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("checking active request: %w", err)
		case active.Status == string(model.RequestStatusRemovePending):
			if _, err := q.TransitionAccessRequest(ctx, store.TransitionAccessRequestParams{
				ID:           active.ID,
				FromStatus:   active.Status,
				ToStatus:     string(model.RequestStatusApproved),
				ResponseDate: s.now(),
				ReviewerID:   actor.ID,
				Resolution:   string(model.ResolutionRevoked),
			}); err != nil {
				return fmt.Errorf("resolving removal request: %w", err)
			}
		}

		n, err := q.DeleteApprovedGrant(ctx, userID, serviceID)
		if err != nil {
			return fmt.Errorf("revoking grant: %w", err)
		}
		if n == 0 {
			return model.NewConflictError(model.ReasonInvalidTransition, "grant was changed concurrently")
		}
		return s.audit(ctx, q, actor, "Access revoked", grant.Model())
	})
	if err != nil {
		return model.AccessRequest{}, err
	}

	req := grant.Model()
	s.entitlements.Invalidate(ctx, userID)
	s.publish(req, true)
	return req, nil
}

// ServiceUsers returns the users currently entitled to serviceID.
func (s *AccessService) ServiceUsers(ctx context.Context, actor model.Actor, serviceID string) ([]model.User, error) {
	if !actor.IsAdmin() {
		return nil, model.NewAuthorizationError("only admins can list service users")
	}
	if _, err := s.dir.GetService(ctx, serviceID); err != nil {
		return nil, err
	}
	rows, err := s.queries.ListEntitledUsers(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("listing service users: %w", err)
	}
	out := make([]model.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Model())
	}
	return out, nil
}

// Approve grants a pending request or carries out a pending removal.
func (s *AccessService) Approve(ctx context.Context, actor model.Actor, id int64) (model.AccessRequest, error) {
	return s.Decide(ctx, actor, id, model.DecisionApprove, nil)
}

// Reject refuses a pending request, or denies a pending removal so that the
// grant stays in force.
func (s *AccessService) Reject(ctx context.Context, actor model.Actor, id int64, reason *string) (model.AccessRequest, error) {
	return s.Decide(ctx, actor, id, model.DecisionReject, reason)
}

// Decide applies an admin decision to the request with the given id.
func (s *AccessService) Decide(ctx context.Context, actor model.Actor, id int64, decision model.Decision, reason *string) (model.AccessRequest, error) {
	if !actor.IsAdmin() {
		return model.AccessRequest{}, model.NewAuthorizationError("only admins can decide access requests")
	}
	if _, err := model.ParseDecision(string(decision)); err != nil {
		return model.AccessRequest{}, err
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return model.AccessRequest{}, err
	}

	unlock := s.locks.lock(current.UserID, current.ServiceID)
	defer unlock()

	var updated store.AccessRequest
	err = store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		row, err := q.GetAccessRequest(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return model.NewNotFoundError("access_request", fmt.Sprintf("id %d", id))
			}
			return fmt.Errorf("loading access request: %w", err)
		}

		params := store.TransitionAccessRequestParams{
			ID:           id,
			FromStatus:   row.Status,
			ResponseDate: s.now(),
			ReviewerID:   actor.ID,
		}

		switch {
		case row.Status == string(model.RequestStatusPending) && decision == model.DecisionApprove:
			params.ToStatus = string(model.RequestStatusApproved)

		case row.Status == string(model.RequestStatusPending) && decision == model.DecisionReject:
			params.ToStatus = string(model.RequestStatusRejected)
			params.RejectionReason = reason

		case row.Status == string(model.RequestStatusRemovePending) && decision == model.DecisionApprove:
			n, err := q.DeleteApprovedGrant(ctx, row.UserID, row.ServiceID)
			if err != nil {
				return fmt.Errorf("revoking grant: %w", err)
			}
			if n == 0 {
				return model.NewConflictError(model.ReasonInvalidTransition,
					fmt.Sprintf("removal request %d has no approved grant to revoke", id))
			}
			params.ToStatus = string(model.RequestStatusApproved)
			params.Resolution = string(model.ResolutionRevoked)

		case row.Status == string(model.RequestStatusRemovePending) && decision == model.DecisionReject:
			denied := model.RejectionReasonRevocationDenied
			params.ToStatus = string(model.RequestStatusApproved)
			params.RejectionReason = &denied
			params.Resolution = string(model.ResolutionRevocationDenied)

		default:
			return model.NewConflictError(model.ReasonInvalidTransition,
				fmt.Sprintf("request in status %s cannot be %s", row.Status, decision))
		}

		n, err := q.TransitionAccessRequest(ctx, params)
		if err != nil {
			if store.IsUniqueViolation(err) {
				return model.NewConflictError(model.ReasonAlreadyApproved, "access to this service is already approved")
			}
			return fmt.Errorf("updating access request: %w", err)
		}
		if n == 0 {
			return model.NewConflictError(model.ReasonInvalidTransition, "request was changed concurrently")
		}

		updated, err = q.GetAccessRequest(ctx, id)
		if err != nil {
			return fmt.Errorf("reloading access request: %w", err)
		}
		return s.audit(ctx, q, actor, "Access request "+string(decision), updated.Model())
	})
	if err != nil {
		return model.AccessRequest{}, err
	}

	req := updated.Model()
	s.entitlements.Invalidate(ctx, req.UserID)
	s.publish(req, false)
	return req, nil
}

// Cancel withdraws a pending request. Only the requester may cancel: the
// user the request is for, or the admin who filed it on their behalf.
func (s *AccessService) Cancel(ctx context.Context, actor model.Actor, id int64) error {
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !isRequester(&current, actor) {
		return model.NewAuthorizationError("only the requester can cancel a request")
	}
	if current.Status != model.RequestStatusPending {
		return model.NewConflictError(model.ReasonInvalidTransition,
			fmt.Sprintf("request in status %s cannot be cancelled", current.Status))
	}

	unlock := s.locks.lock(current.UserID, current.ServiceID)
	defer unlock()

	err = store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		n, err := q.DeletePendingAccessRequest(ctx, id)
		if err != nil {
			return fmt.Errorf("deleting access request: %w", err)
		}
		if n == 0 {
			return model.NewConflictError(model.ReasonInvalidTransition, "request is no longer pending")
		}
		return s.audit(ctx, q, actor, "Access request cancelled", current)
	})
	if err != nil {
		return err
	}

	s.publish(current, true)
	return nil
}

// BulkApply applies one decision to many requests. Ids are processed
// independently and concurrently; a failure on one id does not affect the others.
func (s *AccessService) BulkApply(ctx context.Context, actor model.Actor, ids []int64, decision model.Decision, reason *string) (BulkResult, error) {
	if !actor.IsAdmin() {
		return BulkResult{}, model.NewAuthorizationError("only admins can decide access requests")
	}
	if _, err := model.ParseDecision(string(decision)); err != nil {
		return BulkResult{}, err
	}
	if len(ids) == 0 {
		return BulkResult{}, model.NewValidationError("ids", "at least one id is required")
	}

	items := make([]BulkItemResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(BulkConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			req, err := s.Decide(gctx, actor, id, decision, reason)
			items[i] = BulkItemResult{ID: id, Err: err}
			if err == nil {
				items[i].Request = &req
			}
			return nil
		})
	}
	_ = g.Wait()

	result := BulkResult{Items: items}
	for _, it := range items {
		if it.Err != nil {
			result.Failed++
		} else {
			result.Succeeded++
		}
	}
	s.logger.Info("bulk decision applied",
		"decision", decision, "succeeded", result.Succeeded, "failed", result.Failed,
		"category", model.EventCategoryAccess)
	return result, nil
}

// Get returns a request visible to actor: their own, or any for an admin.
func (s *AccessService) Get(ctx context.Context, actor model.Actor, id int64) (model.AccessRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return model.AccessRequest{}, err
	}
	if req.UserID != actor.ID && !actor.IsAdmin() {
		return model.AccessRequest{}, model.NewAuthorizationError("request belongs to another user")
	}
	return req, nil
}

// ListFilter narrows AccessService.List.
type ListFilter struct {
	// Scope is ScopeMine (the default) or ScopeAll, which is admin only.
	Scope string
	// Status keeps only requests in that status when set.
	Status model.RequestStatus
}

// List returns requests newest first.
func (s *AccessService) List(ctx context.Context, actor model.Actor, filter ListFilter) ([]model.AccessRequestDetails, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, model.NewValidationError("status", "status must be pending, approved, rejected or remove_pending")
	}

	var (
		rows []store.AccessRequestDetailsRow
		err  error
	)
	switch filter.Scope {
	case "", ScopeMine:
		rows, err = s.queries.ListAccessRequestsByUser(ctx, actor.ID)
	case ScopeAll:
		if !actor.IsAdmin() {
			return nil, model.NewAuthorizationError("only admins can list all requests")
		}
		if filter.Status != "" {
			rows, err = s.queries.ListAccessRequestsByStatus(ctx, string(filter.Status))
		} else {
			rows, err = s.queries.ListAccessRequests(ctx)
		}
	default:
		return nil, model.NewValidationError("scope", "scope must be mine or all")
	}
	if err != nil {
		return nil, fmt.Errorf("listing access requests: %w", err)
	}

	out := make([]model.AccessRequestDetails, 0, len(rows))
	for _, r := range rows {
		if filter.Status != "" && model.RequestStatus(r.Status) != filter.Status {
			continue
		}
		out = append(out, r.Model())
	}
	return out, nil
}

// PendingCount returns how many requests await an admin decision: all of
// them for an admin, the actor's own otherwise.
func (s *AccessService) PendingCount(ctx context.Context, actor model.Actor) (int64, error) {
	var (
		n   int64
		err error
	)
	if actor.IsAdmin() {
		n, err = s.queries.CountPendingRequests(ctx)
	} else {
		n, err = s.queries.CountPendingRequestsByUser(ctx, actor.ID)
	}
	if err != nil {
		return 0, fmt.Errorf("counting pending requests: %w", err)
	}
	return n, nil
}

// AvailableServices returns the services the actor can still request:
// every service for an admin, otherwise those without an active request or
// an approved grant.
func (s *AccessService) AvailableServices(ctx context.Context, actor model.Actor) ([]model.Service, error) {
	if actor.IsAdmin() {
		return s.dir.ListServices(ctx)
	}
	rows, err := s.queries.ListRequestableServices(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("listing requestable services: %w", err)
	}
	return servicesFromRows(rows), nil
}

// EntitledServiceList returns the services userID currently has access to.
// Members may only list their own.
func (s *AccessService) EntitledServiceList(ctx context.Context, actor model.Actor, userID int64) ([]model.Service, error) {
	if actor.ID != userID && !actor.IsAdmin() {
		return nil, model.NewAuthorizationError("members may only list their own services")
	}
	rows, err := s.queries.ListEntitledServices(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing entitled services: %w", err)
	}
	return servicesFromRows(rows), nil
}

func (s *AccessService) load(ctx context.Context, id int64) (model.AccessRequest, error) {
	row, err := s.queries.GetAccessRequest(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.AccessRequest{}, model.NewNotFoundError("access_request", fmt.Sprintf("id %d", id))
		}
		return model.AccessRequest{}, fmt.Errorf("loading access request %d: %w", id, err)
	}
	return row.Model(), nil
}

func (s *AccessService) audit(ctx context.Context, q *store.Queries, actor model.Actor, message string, req model.AccessRequest) error {
	return recordEvent(ctx, q, model.EventLevelInfo, model.EventCategoryAccess, message, &actor.ID, "", map[string]any{
		"request_id": req.ID,
		"user_id":    req.UserID,
		"service_id": req.ServiceID,
		"kind":       req.Kind,
		"status":     req.Status,
		"resolution": req.Resolution,
	})
}

func (s *AccessService) publish(req model.AccessRequest, deleted bool) {
	if s.publisher == nil {
		return
	}
	ev := lifecycle.NewEvent(req)
	ev.Deleted = deleted
	s.publisher.Publish(ev)
}

func isRequester(req *model.AccessRequest, actor model.Actor) bool {
	if req.UserID == actor.ID {
		return true
	}
	return req.RequestedBy != nil && *req.RequestedBy == actor.ID
}

func ensureNoActiveRequest(ctx context.Context, q *store.Queries, userID int64, serviceID string) error {
	active, err := q.GetActiveRequestForPair(ctx, userID, serviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking active request: %w", err)
	}
	if active.Status == string(model.RequestStatusRemovePending) {
		return model.NewConflictError(model.ReasonRemovalPending, "a removal request is already pending")
	}
	return model.NewConflictError(model.ReasonActiveRequestExists, "an active request already exists for this service")
}

func servicesFromRows(rows []store.Service) []model.Service {
	out := make([]model.Service, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Model())
	}
	return out
}
