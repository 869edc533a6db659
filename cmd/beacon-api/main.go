// beacon-api serves the public ingest endpoints and the dashboard query
// API. Accepted payloads are pushed onto Redis queues for beacon-worker;
// reads go straight to PostgreSQL behind a Redis cache.
package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/beacon/pkg/api"
	"github.com/platinummonkey/beacon/pkg/cache"
	"github.com/platinummonkey/beacon/pkg/config"
	"github.com/platinummonkey/beacon/pkg/httputil"
	"github.com/platinummonkey/beacon/pkg/metrics"
	"github.com/platinummonkey/beacon/pkg/middleware"
	"github.com/platinummonkey/beacon/pkg/observability"
	"github.com/platinummonkey/beacon/pkg/queue"
	"github.com/platinummonkey/beacon/pkg/storage"
	"github.com/platinummonkey/beacon/pkg/storage/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	db, err := postgres.Connect(cfg.Storage)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to PostgreSQL")
		os.Exit(1)
	}
	defer db.Close()

	redisClient, err := storage.NewRedisClient(cfg.Storage)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to Redis")
		os.Exit(1)
	}
	defer redisClient.Close()

	registry := prometheus.NewRegistry()
	var m *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		m = observability.NewMetrics(registry)
	}

	metricsQueue := queue.New(redisClient, queue.MetricsQueue, logger, m)
	errorsQueue := queue.New(redisClient, queue.ErrorsQueue, logger, m)

	queryCache := cache.New(cache.NewRedisStore(redisClient), logger, m)
	service := metrics.NewService(db, queryCache, cfg.Storage.CacheTTL, logger)

	ingestServer := api.NewIngestServer(metricsQueue, errorsQueue, logger, m)
	queryServer := api.NewQueryServer(service, logger)

	limiter := middleware.NewRateLimiter(redisClient, &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.Server.RateLimitPerMinute,
		WindowDuration:    time.Minute,
	}, logger)

	router := buildRouter(cfg, logger, m, limiter, ingestServer, queryServer)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := newHealthServer(cfg, db, redisClient, registry)

	// Background gauges.
	monitorCtx, stopMonitors := context.WithCancel(context.Background())
	if m != nil {
		done := make(chan struct{})
		go m.MonitorDBPool(done, db, 15*time.Second)
		go metricsQueue.MonitorDepth(monitorCtx, 15*time.Second, m)
		go errorsQueue.MonitorDepth(monitorCtx, 15*time.Second, m)
		defer close(done)
	}

	var g errgroup.Group
	g.Go(func() error {
		logger.WithField("addr", server.Addr).Info("Starting beacon API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Starting health server")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		manager := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
		manager.RegisterShutdownFunc(healthServer.Shutdown)
		manager.RegisterShutdownFunc(func(context.Context) error {
			stopMonitors()
			return nil
		})
		manager.RegisterShutdownFunc(func(context.Context) error {
			return redisClient.Close()
		})
		return manager.WaitForShutdown()
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
	logger.Info("beacon API server stopped")
}

// buildRouter mounts the ingest and query route trees behind the shared
// middleware stack. Only the public ingest endpoints are API-keyed and
// rate limited; the dashboard query API sits behind the same base
// middleware.
func buildRouter(cfg *config.Config, logger *observability.Logger, m *observability.Metrics, limiter *middleware.RateLimiter, ingestServer *api.IngestServer, queryServer *api.QueryServer) http.Handler {
	base := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(logger),
		httputil.LoggingMiddleware(logger),
		httputil.CORSMiddleware([]string{"*"}),
	}
	if m != nil {
		base = append(base, observability.HTTPMetricsMiddleware(m))
	}

	ingestChain := make([]func(http.Handler) http.Handler, 0, len(base)+2)
	ingestChain = append(ingestChain, base...)
	ingestChain = append(ingestChain, middleware.APIKeyAuth, limiter.Handler)

	root := mux.NewRouter()
	root.PathPrefix("/v1/").Handler(httputil.Chain(ingestChain...)(ingestServer))
	root.PathPrefix("/api/").Handler(httputil.Chain(base...)(queryServer))
	return root
}

// newHealthServer serves the k8s probes and the Prometheus scrape
// endpoint on a port separate from client traffic.
func newHealthServer(cfg *config.Config, db *sql.DB, redisClient *redis.Client, registry *prometheus.Registry) *http.Server {
	healthMux := http.NewServeMux()
	checker := observability.NewHealthChecker(db, redisClient)
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	return &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}
}
