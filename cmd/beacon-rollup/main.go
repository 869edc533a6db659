// beacon-rollup compacts raw metrics into daily per-page percentiles
// and prunes rows past the retention window. It normally runs as a
// long-lived cron process; --run-once executes a single day and exits,
// which is also how backfills are done.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/beacon/pkg/cache"
	"github.com/platinummonkey/beacon/pkg/config"
	"github.com/platinummonkey/beacon/pkg/metrics"
	"github.com/platinummonkey/beacon/pkg/observability"
	"github.com/platinummonkey/beacon/pkg/storage"
	"github.com/platinummonkey/beacon/pkg/storage/postgres"
)

var (
	runOnce   = flag.Bool("run-once", false, "Run the rollup once and exit (for testing or backfilling)")
	rollupDay = flag.String("date", "", "Day to roll up (YYYY-MM-DD). Defaults to yesterday. Only used with --run-once")
)

func main() {
	flag.Parse()

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

	rollup := metrics.NewRollup(db, logger)
	queryCache := cache.New(cache.NewRedisStore(redisClient), logger, nil)

	if *runOnce {
		day := time.Now().UTC().AddDate(0, 0, -1)
		if *rollupDay != "" {
			day, err = time.Parse("2006-01-02", *rollupDay)
			if err != nil {
				logger.WithError(err).Error("Invalid --date, expected YYYY-MM-DD")
				os.Exit(1)
			}
		}
		if err := runRollup(rollup, queryCache, cfg.Rollup.Retention, logger, day); err != nil {
			os.Exit(1)
		}
		return
	}

	c := cron.New()
	_, err = c.AddFunc(cfg.Rollup.Schedule, func() {
		yesterday := time.Now().UTC().AddDate(0, 0, -1)
		runRollup(rollup, queryCache, cfg.Rollup.Retention, logger, yesterday)
	})
	if err != nil {
		logger.WithError(err).Error("Failed to schedule rollup")
		os.Exit(1)
	}

	c.Start()
	logger.WithField("schedule", cfg.Rollup.Schedule).
		WithField("retention", cfg.Rollup.Retention.String()).
		Info("beacon rollup scheduler started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Infof("Received signal %s, stopping scheduler", sig)

	// Stop returns a context that completes when running jobs finish.
	<-c.Stop().Done()
	logger.Info("beacon rollup stopped")
}

// runRollup compacts one day, prunes expired raw rows, and drops any
// cached query results that the prune may have changed.
func runRollup(rollup *metrics.Rollup, queryCache *cache.Cache, retention time.Duration, logger *observability.Logger, day time.Time) error {
	ctx := context.Background()
	dayLogger := logger.WithField("day", day.Format("2006-01-02"))

	if err := rollup.RollupDay(ctx, day); err != nil {
		dayLogger.WithError(err).Error("Daily rollup failed")
		return err
	}
	dayLogger.Info("Daily rollup complete")

	removedMetrics, removedErrors, err := rollup.PruneRawMetrics(ctx, retention)
	if err != nil {
		dayLogger.WithError(err).Error("Retention prune failed")
		return err
	}
	dayLogger.WithField("metrics_removed", removedMetrics).
		WithField("errors_removed", removedErrors).
		Info("Retention prune complete")

	if err := queryCache.Invalidate(ctx, "*"); err != nil {
		dayLogger.WithError(err).Warn("Failed to invalidate query cache")
	}
	return nil
}
