// beacon-worker drains the Redis queues that beacon-api fills. Metrics
// jobs carry a whole telemetry batch; errors jobs carry one JavaScript
// error report. Each job is persisted to PostgreSQL in a single
// transaction.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/beacon/pkg/config"
	"github.com/platinummonkey/beacon/pkg/ingest"
	"github.com/platinummonkey/beacon/pkg/observability"
	"github.com/platinummonkey/beacon/pkg/pipeline"
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

	metricsProcessor := pipeline.NewMetricsProcessor(db, logger)
	errorsProcessor := pipeline.NewErrorsProcessor(db, logger)

	metricsQueue := queue.New(redisClient, queue.MetricsQueue, logger, m)
	errorsQueue := queue.New(redisClient, queue.ErrorsQueue, logger, m)

	metricsWorker := queue.NewWorker(metricsQueue, metricsHandler(metricsProcessor), cfg.Worker.MetricsConcurrency, logger, m)
	errorsWorker := queue.NewWorker(errorsQueue, errorsHandler(errorsProcessor), cfg.Worker.ErrorsConcurrency, logger, m)

	healthMux := http.NewServeMux()
	checker := observability.NewHealthChecker(db, redisClient)
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if m != nil {
		done := make(chan struct{})
		go m.MonitorDBPool(done, db, 15*time.Second)
		go metricsQueue.MonitorDepth(ctx, 15*time.Second, m)
		go errorsQueue.MonitorDepth(ctx, 15*time.Second, m)
		defer close(done)
	}

	var g errgroup.Group
	g.Go(func() error {
		logger.WithField("concurrency", cfg.Worker.MetricsConcurrency).Info("Starting metrics workers")
		metricsWorker.Run(ctx)
		return nil
	})
	g.Go(func() error {
		logger.WithField("concurrency", cfg.Worker.ErrorsConcurrency).Info("Starting errors workers")
		errorsWorker.Run(ctx)
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Starting health server")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Infof("Received signal %s, draining workers", sig)

	// Cancelling the context stops the consume loops; in-flight jobs
	// finish before Run returns.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Health server shutdown error")
	}

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Worker exited with error")
		os.Exit(1)
	}
	logger.Info("beacon worker stopped")
}

// metricsHandler adapts the metrics processor to the queue handler
// contract. Undecodable payloads fail fast and burn their retries.
func metricsHandler(p *pipeline.MetricsProcessor) queue.Handler {
	return func(ctx context.Context, job *queue.Job) error {
		var batch ingest.Batch
		if err := json.Unmarshal(job.Payload, &batch); err != nil {
			return fmt.Errorf("undecodable metrics payload: %w", err)
		}
		return p.Process(ctx, &batch)
	}
}

// errorsHandler adapts the errors processor to the queue handler
// contract.
func errorsHandler(p *pipeline.ErrorsProcessor) queue.Handler {
	return func(ctx context.Context, job *queue.Job) error {
		var report ingest.ErrorReport
		if err := json.Unmarshal(job.Payload, &report); err != nil {
			return fmt.Errorf("undecodable error report payload: %w", err)
		}
		return p.Process(ctx, &report)
	}
}
