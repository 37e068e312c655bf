// Package api exposes the HTTP surface: provider webhooks, the tenant
// admin API, and operator introspection endpoints.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/textback/textback/internal/api/middleware"
	"github.com/textback/textback/internal/config"
	"github.com/textback/textback/internal/database"
	"github.com/textback/textback/internal/directory"
	"github.com/textback/textback/internal/dispatch"
	"github.com/textback/textback/internal/ratelimit"
	"github.com/textback/textback/internal/router"
)

// Resolver resolves published numbers. Satisfied by *directory.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, number string) (*directory.Tenant, error)
}

// DispositionHandler runs the missed-call pipeline. Satisfied by
// *router.Router.
type DispositionHandler interface {
	HandleDisposition(ctx context.Context, ev router.Event) error
}

// LimiterStatus exposes limiter state for introspection. Satisfied by
// *ratelimit.Limiter.
type LimiterStatus interface {
	Status(key string) (ratelimit.Entry, bool, error)
}

// StatsSource exposes dispatcher counters. Satisfied by
// *dispatch.Dispatcher.
type StatsSource interface {
	Stats() dispatch.Stats
}

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router *chi.Mux
	cfg    *config.Config

	tenants      database.TenantRepository
	resolver     Resolver
	dispositions DispositionHandler
	limiter      LimiterStatus
	dispatcher   StatsSource
	ipLimiter    *middleware.IPRateLimiter
	metrics      http.Handler // optional, mounted at /metrics

	startedAt time.Time
}

// NewServer creates the HTTP handler with all routes mounted. metrics may
// be nil, in which case no /metrics route is exposed.
func NewServer(cfg *config.Config, tenants database.TenantRepository, resolver Resolver, dispositions DispositionHandler, limiter LimiterStatus, dispatcher StatsSource, metrics http.Handler) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		cfg:          cfg,
		tenants:      tenants,
		resolver:     resolver,
		dispositions: dispositions,
		limiter:      limiter,
		dispatcher:   dispatcher,
		ipLimiter:    middleware.NewIPRateLimiter(middleware.DefaultRateLimitConfig()),
		metrics:      metrics,
		startedAt:    time.Now(),
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background goroutines owned by the server.
func (s *Server) Close() {
	s.ipLimiter.Stop()
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes() {
	r := s.router

	// Global middleware stack.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger)
	r.Use(middleware.Recoverer)

	// Provider webhooks. Not IP-limited: caller abuse is governed by the
	// caller-keyed limiter inside the pipeline.
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/voice", s.handleVoice)
		r.Post("/voice/status", s.handleVoiceStatus)
	})

	// Admin and introspection routes under /api/v1.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.ipLimiter))

		r.Get("/health", s.handleHealth)

		r.Route("/tenants", func(r chi.Router) {
			r.Get("/", s.handleListTenants)
			r.Post("/", s.handleCreateTenant)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTenant)
				r.Put("/", s.handleUpdateTenant)
				r.Delete("/", s.handleDeleteTenant)
			})
		})

		r.Get("/ratelimit/{key}", s.handleRateLimitStatus)
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	slog.Info("http routes mounted")
}
