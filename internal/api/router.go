package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	apimiddleware "github.com/lcollado/adforge/internal/api/middleware"
	"github.com/lcollado/adforge/internal/service/auth"
)

// RouterDeps bundles everything the router needs.
type RouterDeps struct {
	Tasks      *TaskHandler
	Auth       *AuthHandler
	JWTService auth.JWTService

	// Metrics is the scrape endpoint handler; nil disables /metrics.
	Metrics http.Handler
}

// NewRouter builds the application router with all routes and
// middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.Trace)

	authMiddleware := apimiddleware.NewAuthMiddleware(deps.JWTService)

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/login", deps.Auth.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/tasks", deps.Tasks.SubmitTask)
			r.Get("/tasks/{id}", deps.Tasks.GetTask)
			r.Delete("/tasks/{id}", deps.Tasks.CancelTask)
			r.Get("/tasks/{id}/events", deps.Tasks.StreamTask)

			r.Get("/templates", deps.Tasks.SearchTemplates)
			r.Get("/providers/health", deps.Tasks.ProviderHealth)
			r.Get("/providers/{id}/health", deps.Tasks.GetProviderHealth)
			r.Get("/archive/tasks", deps.Tasks.ListArchivedTasks)
		})
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}
