package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/svcportal/internal/middleware"
	"github.com/olegiv/svcportal/internal/service"
)

// Routes bundles the handlers mounted by Mount.
type Routes struct {
	API    *Handler
	Auth   *AuthHandler
	Health *HealthHandler
	Admin  *AdminHandler
	// Directory serves user and catalog administration. May be nil.
	Directory *DirectoryHandler
	// Events receives admin-denial audit entries. May be nil.
	Events *service.EventService
	// LoginLimit and APILimit are optional rate limiting middleware.
	LoginLimit func(http.Handler) http.Handler
	APILimit   func(http.Handler) http.Handler
}

func passThrough(next http.Handler) http.Handler { return next }

// Mount registers the v1 API on r. The caller is responsible for loading
// the session user with middleware.LoadUser before these routes run.
func Mount(r chi.Router, rt Routes) {
	loginLimit := rt.LoginLimit
	if loginLimit == nil {
		loginLimit = passThrough
	}
	apiLimit := rt.APILimit
	if apiLimit == nil {
		apiLimit = passThrough
	}
	requireAdmin := middleware.RequireAdmin(rt.Events)

	r.Get("/health", rt.Health.Health)
	r.Get("/health/live", rt.Health.Liveness)
	r.Get("/health/ready", rt.Health.Readiness)

	r.Route("/auth", func(r chi.Router) {
		r.With(loginLimit).Post("/login", rt.Auth.Login)
		r.Post("/logout", rt.Auth.Logout)
		r.With(middleware.RequireAuth).Get("/me", rt.Auth.Me)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Use(apiLimit)

		r.Route("/access-requests", func(r chi.Router) {
			r.Get("/", rt.API.ListAccessRequests)
			r.Post("/", rt.API.SubmitAccessRequest)
			r.Get("/pending-count", rt.API.PendingCount)
			r.With(requireAdmin).Post("/bulk", rt.API.BulkDecide)
			r.Get("/{id}", rt.API.GetAccessRequest)
			r.With(requireAdmin).Put("/{id}", rt.API.DecideAccessRequest)
			r.Delete("/{id}", rt.API.CancelAccessRequest)
			r.Post("/{id}/removal", rt.API.RequestRemoval)
		})

		r.Route("/services", func(r chi.Router) {
			r.Get("/", rt.API.ListServices)
			r.Get("/entitled", rt.API.EntitledServices)
			r.Get("/available", rt.API.AvailableServices)
		})

		r.Route("/content", func(r chi.Router) {
			r.Get("/", rt.API.ListContent)
			r.Post("/", rt.API.CreateContent)
			r.Get("/{id}", rt.API.GetContent)
			r.Put("/{id}", rt.API.UpdateContent)
			r.Delete("/{id}", rt.API.DeleteContent)
			r.With(requireAdmin).Put("/{id}/response", rt.API.RespondContent)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin)

			r.Get("/services/{id}/users", rt.API.ServiceUsers)
			r.Post("/services/{id}/users", rt.API.GrantServiceUser)
			r.Delete("/services/{id}/users/{userID}", rt.API.RevokeServiceUser)

			if rt.Directory != nil {
				r.Get("/users", rt.Directory.ListUsers)
				r.Put("/users/{id}", rt.Directory.UpdateUserRole)
				r.Put("/services/{id}/status", rt.Directory.UpdateServiceStatus)
			}
			if rt.Admin != nil {
				r.Get("/events", rt.Admin.ListEvents)
				r.Get("/jobs", rt.Admin.ListJobs)
				r.Post("/jobs/{name}/run", rt.Admin.TriggerJob)
			}
		})
	})
}
