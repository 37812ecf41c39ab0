package service

import (
	"database/sql"
	"testing"
	"time"

	"github.com/olegiv/svcportal/internal/cache"
	"github.com/olegiv/svcportal/internal/directory"
	"github.com/olegiv/svcportal/internal/lifecycle"
	"github.com/olegiv/svcportal/internal/model"
	"github.com/olegiv/svcportal/internal/testutil"
)

type testEnv struct {
	db       *sql.DB
	hub      *lifecycle.Hub
	events   *lifecycle.Subscription
	resolver *EntitlementResolver
	access   *AccessService
	content  *ContentService
	admin    model.Actor
	u1       model.Actor
	u2       model.Actor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.TestDB(t)
	logger := testutil.TestLoggerSilent()
	dir := directory.New(db)

	c := cache.NewMemoryCache(time.Minute, 0)
	t.Cleanup(func() { _ = c.Close() })

	hub := lifecycle.NewHub(logger)
	t.Cleanup(hub.Close)

	resolver := NewEntitlementResolver(db, c, time.Minute, logger)
	admin := testutil.CreateUser(t, db, model.RoleAdmin)
	u1 := testutil.CreateUser(t, db, model.RoleMember)
	u2 := testutil.CreateUser(t, db, model.RoleMember)
	testutil.CreateService(t, db, "svc-1")
	testutil.CreateService(t, db, "svc-2")

	return &testEnv{
		db:       db,
		hub:      hub,
		events:   hub.Subscribe(256),
		resolver: resolver,
		access:   NewAccessService(db, dir, resolver, hub, logger),
		content:  NewContentService(db, dir, resolver, logger),
		admin:    admin.Actor(),
		u1:       u1.Actor(),
		u2:       u2.Actor(),
	}
}

// activeCount returns the number of requests awaiting admin action for a pair.
func (e *testEnv) activeCount(t *testing.T, userID int64, serviceID string) int {
	t.Helper()
	var n int
	err := e.db.QueryRow(`SELECT COUNT(*) FROM access_requests
		WHERE user_id = ? AND service_id = ? AND status IN ('pending', 'remove_pending')`,
		userID, serviceID).Scan(&n)
	if err != nil {
		t.Fatalf("counting active requests: %v", err)
	}
	return n
}

func (e *testEnv) drainEvents() []lifecycle.Event {
	var out []lifecycle.Event
	for {
		select {
		case ev := <-e.events.C():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func strPtr(s string) *string { return &s }
