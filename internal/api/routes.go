package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/abdulachik/linkrunner/internal/health"
	"github.com/abdulachik/linkrunner/internal/observability"
	"github.com/abdulachik/linkrunner/internal/workflow"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Runner        *workflow.Runner
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	APIKey        string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.Runner, cfg.HealthChecker)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Instrument(cfg.Metrics))

	// Probes stay open
	r.Get("/livez", handler.Livez)
	r.Get("/readyz", handler.Readyz)

	r.Route("/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.APIKey))

		r.Get("/workflows", handler.ListWorkflows)
		r.Post("/workflows/{name}/runs", handler.CreateRun)
		r.Get("/runs", handler.ListRuns)
		r.Get("/runs/{id}", handler.GetRun)
	})

	return r
}
