// Package server exposes the planning facade over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"meal-planner/internal/app"
	"meal-planner/internal/inventory"
	"meal-planner/internal/metrics"
	"meal-planner/internal/planner"
	"meal-planner/internal/shopping"
	"meal-planner/internal/syncer"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Facade is the part of app.App the HTTP API serves.
type Facade interface {
	RequestPlan(ctx context.Context, req app.PlanRequest) (planner.MealPlan, error)
	Sync(ctx context.Context) (syncer.Result, error)
	Snapshot(ctx context.Context, version int64) (inventory.Snapshot, error)
	Versions(ctx context.Context) ([]int64, error)
	Plan(ctx context.Context, id string) (planner.MealPlan, error)
	RecentPlans(ctx context.Context, limit int) ([]planner.MealPlan, error)
	ShoppingList(ctx context.Context, planID string) (shopping.List, error)
	ReloadCatalog() (int, error)
}

// SyncHistory reports the most recent sync run.
type SyncHistory interface {
	LastSync(ctx context.Context) (metrics.SyncMetric, error)
}

// Option configures optional collaborators.
type Option func(*Server)

// WithDataDir reports the size of dir in /health.
func WithDataDir(dir string) Option {
	return func(s *Server) { s.dataDir = dir }
}

// WithSyncHistory reports the last sync run in /health.
func WithSyncHistory(h SyncHistory) Option {
	return func(s *Server) { s.history = h }
}

// WithWebhook mounts a POST handler for chat updates at path.
func WithWebhook(path string, h http.HandlerFunc) Option {
	return func(s *Server) { s.webhookPath, s.webhook = path, h }
}

// Server routes HTTP requests to the facade.
type Server struct {
	facade  Facade
	logger  *slog.Logger
	dataDir string
	history SyncHistory
	router  chi.Router

	webhookPath string
	webhook     http.HandlerFunc
	started time.Time
}

// New builds the router.
func New(f Facade, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		facade:  f,
		logger:  logger.With("component", "http"),
		started: time.Now(),
	}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Post("/plan", s.handlePlan)
	r.Post("/sync", s.handleSync)
	r.Post("/catalog/reload", s.handleReloadCatalog)
	r.Route("/snapshots", func(r chi.Router) {
		r.Get("/", s.handleListSnapshots)
		r.Get("/latest", s.handleLatestSnapshot)
		r.Get("/{version}", s.handleGetSnapshot)
	})
	r.Route("/plans", func(r chi.Router) {
		r.Get("/", s.handleListPlans)
		r.Get("/{id}", s.handleGetPlan)
		r.Get("/{id}/shopping-list", s.handleShoppingList)
	})
	if s.webhook != nil {
		r.Post(s.webhookPath, s.webhook)
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, s.logger, notFound("no route for "+r.Method+" "+r.URL.Path))
	})

	s.router = r
	return s
}

// Handler returns the instrumented root handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "meal-planner",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// ServeHTTP lets the server be used directly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
