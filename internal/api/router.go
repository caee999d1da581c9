// Package api provides the HTTP API for commutekit.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/commutekit/commutekit/internal/api/handler"
	"github.com/commutekit/commutekit/internal/api/middleware"
	"github.com/commutekit/commutekit/internal/api/response"
	"github.com/commutekit/commutekit/internal/provider/resilience"
)

// DefaultPlanRateLimit is the plan runs allowed per client per minute.
const DefaultPlanRateLimit = 30

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// Planner runs plan queries.
	Planner handler.Planner

	// Registry reports gateway circuit state. May be nil.
	Registry *resilience.Registry

	// Pingers are probed by the readiness check, keyed by dependency name.
	Pingers map[string]handler.Pinger

	// Reporters add background job statistics to the health check, keyed by job name.
	Reporters map[string]handler.StatusReporter

	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool

	// PlanRateLimit is the plan runs allowed per client IP per minute (default: DefaultPlanRateLimit).
	PlanRateLimit int
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "commutekit-api"
	}

	planLimit := cfg.PlanRateLimit
	if planLimit <= 0 {
		planLimit = DefaultPlanRateLimit
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement behind a load balancer
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route matches "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w, r, r.Method+" is not supported on "+r.URL.Path)
	})

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Pingers:   cfg.Pingers,
		Reporters: cfg.Reporters,
	})
	planHandler := handler.NewPlanHandler(cfg.Planner, cfg.Logger)

	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)
	planRateLimit := middleware.RateLimitByIP(middleware.PlanRateLimit(planLimit))

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/gateways", opsHandler.GatewayStatus)
		})

		// Plan runs - each one fans out to the trip planner
		r.With(planRateLimit, middleware.RequireJSON).Post("/plans", planHandler.CreatePlan)
	})

	return r
}
