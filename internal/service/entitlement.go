package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/olegiv/svcportal/internal/cache"
	"github.com/olegiv/svcportal/internal/store"
)

// EntitledSet is the set of service ids a user holds an approved grant for.
type EntitledSet map[string]struct{}

// NewEntitledSet builds a set from ids.
func NewEntitledSet(ids ...string) EntitledSet {
	s := make(EntitledSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether serviceID is in the set.
func (s EntitledSet) Has(serviceID string) bool {
	_, ok := s[serviceID]
	return ok
}

// IDs returns the sorted service ids.
func (s EntitledSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// EntitlementSource resolves the services a user may see content for.
type EntitlementSource interface {
	EntitledServices(ctx context.Context, userID int64) (EntitledSet, error)
}

// EntitlementResolver derives entitlement sets from approved grants. A
// pending removal does not suspend access. Results may be cached for a
// short TTL; AccessService invalidates the entry on every change.
type EntitlementResolver struct {
	queries *store.Queries
	cache   *cache.TypedCache[[]string]
	logger  *slog.Logger
}

// NewEntitlementResolver creates a resolver. A nil cache disables caching.
func NewEntitlementResolver(db *sql.DB, c cache.Cache, ttl time.Duration, logger *slog.Logger) *EntitlementResolver {
	r := &EntitlementResolver{
		queries: store.New(db),
		logger:  logger,
	}
	if c != nil {
		r.cache = cache.NewTypedCache[[]string](c, ttl)
	}
	return r
}

func entitlementKey(userID int64) string {
	return "entitlements:" + strconv.FormatInt(userID, 10)
}

// EntitledServices returns the entitlement set of userID.
func (r *EntitlementResolver) EntitledServices(ctx context.Context, userID int64) (EntitledSet, error) {
	load := func(ctx context.Context) ([]string, error) {
		ids, err := r.queries.ListEntitledServiceIDs(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("resolving entitlements for user %d: %w", userID, err)
		}
		if ids == nil {
			ids = []string{}
		}
		return ids, nil
	}

	var (
		ids []string
		err error
	)
	if r.cache != nil {
		ids, err = r.cache.GetOrLoad(ctx, entitlementKey(userID), load)
	} else {
		ids, err = load(ctx)
	}
	if err != nil {
		return nil, err
	}
	return NewEntitledSet(ids...), nil
}

// Invalidate drops the cached set of userID.
func (r *EntitlementResolver) Invalidate(ctx context.Context, userID int64) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, entitlementKey(userID)); err != nil {
		r.logger.Warn("failed to invalidate entitlement cache",
			"user_id", userID, "error", err, "category", "cache")
	}
}

var _ EntitlementSource = (*EntitlementResolver)(nil)
