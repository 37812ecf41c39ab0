package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/olegiv/svcportal/internal/auth"
	"github.com/olegiv/svcportal/internal/cache"
	"github.com/olegiv/svcportal/internal/directory"
	"github.com/olegiv/svcportal/internal/lifecycle"
	"github.com/olegiv/svcportal/internal/markdown"
	"github.com/olegiv/svcportal/internal/middleware"
	"github.com/olegiv/svcportal/internal/model"
	"github.com/olegiv/svcportal/internal/scheduler"
	"github.com/olegiv/svcportal/internal/service"
	"github.com/olegiv/svcportal/internal/store"
	"github.com/olegiv/svcportal/internal/testutil"
	"github.com/olegiv/svcportal/internal/version"
)

type testServer struct {
	db     *sql.DB
	sm     *scs.SessionManager
	events *service.EventService
	router http.Handler
	admin  model.User
	member model.User
	other  model.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.TestDB(t)
	logger := testutil.TestLoggerSilent()
	dir := directory.New(db)

	c := cache.NewMemoryCache(time.Minute, 0)
	t.Cleanup(func() { _ = c.Close() })
	hub := lifecycle.NewHub(logger)
	t.Cleanup(hub.Close)

	resolver := service.NewEntitlementResolver(db, c, 15*time.Second, logger)
	access := service.NewAccessService(db, dir, resolver, hub, logger)
	content := service.NewContentService(db, dir, resolver, logger)
	events := service.NewEventService(db)
	directoryHandler := NewDirectoryHandler(service.NewUserService(db, logger), service.NewCatalogService(db, dir, logger), logger)

	jobs := scheduler.New(logger, events, nil, scheduler.Config{EventRetention: 24 * time.Hour})
	if err := jobs.Start(); err != nil {
		t.Fatalf("scheduler Start: %v", err)
	}
	t.Cleanup(jobs.Stop)

	sm := scs.New()
	lp := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())
	t.Cleanup(lp.Stop)

	r := chi.NewRouter()
	r.Use(sm.LoadAndSave)
	r.Use(middleware.LoadUser(sm, dir))
	r.Route("/api/v1", func(r chi.Router) {
		Mount(r, Routes{
			API:       NewHandler(access, content, dir, markdown.New(), logger),
			Auth:      NewAuthHandler(dir, sm, events, lp),
			Health:    NewHealthHandler(db, c, version.New("v0.0.0-test", "", "")),
			Admin:     NewAdminHandler(events, jobs.Registry()),
			Directory: directoryHandler,
			Events:    events,
		})
	})

	testutil.CreateService(t, db, "svc-1")
	testutil.CreateService(t, db, "svc-2")

	return &testServer{
		db:     db,
		sm:     sm,
		events: events,
		router: r,
		admin:  testutil.CreateUser(t, db, model.RoleAdmin),
		member: testutil.CreateUser(t, db, model.RoleMember),
		other:  testutil.CreateUser(t, db, model.RoleMember),
	}
}

// sessionCookie returns a cookie for a session signed in as userID.
func (s *testServer) sessionCookie(t *testing.T, userID int64) *http.Cookie {
	t.Helper()
	h := s.sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.sm.Put(r.Context(), middleware.SessionKeyUserID, userID)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no session cookie issued")
	}
	return cookies[0]
}

// do sends a request as user (anonymous when nil) and returns the recorder.
func (s *testServer) do(t *testing.T, user *model.User, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.AddCookie(s.sessionCookie(t, user.ID))
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// createUserWithPassword inserts a member that can log in with password.
func (s *testServer) createUserWithPassword(t *testing.T, email, password string) model.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	now := time.Now().UTC()
	u, err := store.New(s.db).CreateUser(context.Background(), store.CreateUserParams{
		Email:        email,
		PasswordHash: hash,
		Role:         string(model.RoleMember),
		Name:         "Login User",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u.Model()
}

// decodeData unmarshals the data field of a success response into v.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v (body %s)", err, w.Body.String())
	}
	if err := json.Unmarshal(resp.Data, v); err != nil {
		t.Fatalf("failed to unmarshal data: %v (body %s)", err, w.Body.String())
	}
}

// assertStatusCode checks that the response has the expected status code.
func assertStatusCode(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("expected status %d, got %d (body %s)", expected, w.Code, w.Body.String())
	}
}

// assertErrorResponse unmarshals and validates an error response.
func assertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedCode string) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Error.Code != expectedCode {
		t.Errorf("expected code '%s', got %s", expectedCode, resp.Error.Code)
	}
	return resp
}
