// Package main provides the entrypoint for the commutekit API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/commutekit/commutekit/internal/analytics"
	"github.com/commutekit/commutekit/internal/api"
	"github.com/commutekit/commutekit/internal/api/handler"
	"github.com/commutekit/commutekit/internal/api/middleware"
	"github.com/commutekit/commutekit/internal/config"
	"github.com/commutekit/commutekit/internal/database"
	"github.com/commutekit/commutekit/internal/plan"
	"github.com/commutekit/commutekit/internal/plan/otp"
	"github.com/commutekit/commutekit/internal/provider/resilience"
	"github.com/commutekit/commutekit/internal/telemetry"
	"github.com/commutekit/commutekit/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "commutekit-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting commutekit API")

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if !cfg.IsProduction() {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	// Initialize OpenTelemetry
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
		SampleRatio:    cfg.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTelEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Float64("sample_ratio", cfg.SampleRatio).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}
	gatewayMetrics, err := telemetry.NewGatewayMetrics(otp.GatewayName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize gateway metrics")
	}

	location, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load agency time zone")
	}

	// Trip planner gateway
	registry := resilience.NewRegistry()
	gateway := otp.NewClient(otp.ClientConfig{
		BaseURL:  cfg.OTPBaseURL,
		Timeout:  cfg.OTPTimeout,
		Registry: registry,
		Metrics:  gatewayMetrics,
		Logger:   log.With().Str("component", "otp").Logger(),
	})
	log.Info().
		Str("base_url", cfg.OTPBaseURL).
		Dur("timeout", cfg.OTPTimeout).
		Msg("trip planner client initialized")

	// Analytics sinks
	pingers := make(map[string]handler.Pinger)
	tracker, closeTracker, err := newTracker(ctx, cfg, log, pingers)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize analytics")
	}
	defer closeTracker()

	// Plan service
	catalog := plan.NewRouteCatalog(plan.CatalogConfig{
		Gateway: gateway,
		Logger:  log,
		TTL:     cfg.RoutesCacheTTL,
	})

	service, err := plan.NewService(plan.ServiceConfig{
		Gateway:        gateway,
		Catalog:        catalog,
		Scorer:         plan.NewDurationScorer(cfg.MaxOptions),
		Tracker:        tracker,
		Logger:         log,
		Location:       location,
		MaxConcurrency: cfg.MaxConcurrency,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize plan service")
	}
	log.Info().
		Str("timezone", cfg.Timezone).
		Int("max_options", cfg.MaxOptions).
		Msg("plan service initialized")

	// Keep the route table warm between runs
	jobCtx, stopJobs := context.WithCancel(ctx)
	defer stopJobs()

	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Interval: cfg.RoutesRefreshInterval,
			Timeout:  cfg.OTPTimeout,
		},
		Catalog: catalog,
		Logger:  log.With().Str("job", "route_refresh").Logger(),
	})
	go refreshJob.Start(jobCtx)

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:       Version,
		BuildTime:     BuildTime,
		Logger:        log,
		ServiceName:   serviceName,
		Metrics:       metrics,
		Planner:       service,
		Registry:      registry,
		Pingers:       pingers,
		Reporters:     map[string]handler.StatusReporter{"routeRefresh": refreshJob},
		RequireTLS:    cfg.RequireTLS,
		PlanRateLimit: cfg.RateLimit,
	})

	// Plan runs wait on several trip planner calls, so the write timeout covers a full gateway timeout.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2*cfg.OTPTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	stopJobs()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

// newTracker builds the configured analytics sinks. Database-backed sinks register a readiness pinger.
// The returned close function releases sink connections.
func newTracker(ctx context.Context, cfg *config.Config, log zerolog.Logger, pingers map[string]handler.Pinger) (plan.Tracker, func(), error) {
	sinks, err := cfg.Sinks()
	if err != nil {
		return nil, nil, err
	}

	var (
		trackers []plan.Tracker
		closers  []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	for _, sink := range sinks {
		switch sink {
		case analytics.SinkLog:
			trackers = append(trackers, analytics.NewLogTracker(log))

		case analytics.SinkPubSub:
			t, err := analytics.NewPubSubTracker(ctx, analytics.PubSubConfig{
				ProjectID: cfg.PubSubProjectID,
				Topic:     cfg.PubSubTopic,
				Logger:    log,
			})
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			trackers = append(trackers, t)
			closers = append(closers, func() {
				if err := t.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close pubsub tracker")
				}
			})
			log.Info().
				Str("project", cfg.PubSubProjectID).
				Str("topic", cfg.PubSubTopic).
				Msg("pubsub analytics initialized")

		case analytics.SinkPostgres:
			dbConfig := cfg.Database()
			pool, err := database.Connect(ctx, dbConfig)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			closers = append(closers, pool.Close)
			pingers["database"] = pool

			t := analytics.NewPostgresTracker(pool)
			if err := t.EnsureSchema(ctx); err != nil {
				closeAll()
				return nil, nil, err
			}
			trackers = append(trackers, t)
			log.Info().
				Str("host", dbConfig.Host).
				Int("port", dbConfig.Port).
				Str("database", dbConfig.Database).
				Msg("database connected")
		}
	}

	if len(trackers) == 1 {
		return trackers[0], closeAll, nil
	}
	return analytics.NewMultiTracker(trackers...), closeAll, nil
}
