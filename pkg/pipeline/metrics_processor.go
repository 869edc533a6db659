package pipeline

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/beacon/pkg/ingest"
	"github.com/platinummonkey/beacon/pkg/observability"
	"github.com/platinummonkey/beacon/pkg/storage/postgres"
)

// MetricsProcessor handles one metrics job: a validated batch of raw
// events for a single project. All database work for a job happens in
// one transaction; any failure rolls back the whole batch so a retry
// re-runs it from scratch. Website/page upserts are idempotent under
// retry; metric inserts are not, and duplicate rows from a retried job
// are accepted as an at-least-once trade-off.
type MetricsProcessor struct {
	db       *sql.DB
	websites postgres.WebsiteRepo
	pages    postgres.PageRepo
	metrics  postgres.MetricRepo
	logger   *observability.Logger
}

// NewMetricsProcessor creates a metrics processor.
func NewMetricsProcessor(db *sql.DB, logger *observability.Logger) *MetricsProcessor {
	return &MetricsProcessor{db: db, logger: logger}
}

// Process persists one batch. A batch with no events is a no-op, not an
// error, so it is never retried.
func (p *MetricsProcessor) Process(ctx context.Context, batch *ingest.Batch) error {
	if batch.ProjectKey == "" {
		return fmt.Errorf("missing projectKey in job payload")
	}
	if len(batch.Events) == 0 {
		p.logger.WithField("project_key", batch.ProjectKey).Warn("no events to process")
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	websiteID, err := p.resolveWebsite(ctx, tx, batch)
	if err != nil {
		return err
	}

	for _, bucket := range AggregateByPage(batch.Events) {
		if err := p.writePageMetrics(ctx, tx, websiteID, bucket); err != nil {
			p.logger.WithError(err).
				WithField("project_key", batch.ProjectKey).
				WithField("page", bucket.PageURL).
				Error("failed to write page metrics, rolling back batch")
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metrics batch: %w", err)
	}
	return nil
}

// resolveWebsite looks up the project's website, lazily creating it
// from the first event's host (falling back to the project key) the
// first time a project is seen.
func (p *MetricsProcessor) resolveWebsite(ctx context.Context, tx *sql.Tx, batch *ingest.Batch) (int64, error) {
	websiteID, err := p.websites.IDByProjectKey(ctx, tx, batch.ProjectKey)
	if err != nil {
		return 0, err
	}
	if websiteID != 0 {
		return websiteID, nil
	}

	domain := ExtractDomain(batch.Events[0].Page, batch.ProjectKey)
	website, err := p.websites.Upsert(ctx, tx, batch.ProjectKey, batch.ProjectKey, domain)
	if err != nil {
		return 0, err
	}
	return website.ID, nil
}

func (p *MetricsProcessor) writePageMetrics(ctx context.Context, tx *sql.Tx, websiteID int64, bucket *PageBucket) error {
	path := ExtractPath(bucket.PageURL)

	page, err := p.pages.Upsert(ctx, tx, websiteID, path, path)
	if err != nil {
		return err
	}

	sessionID := bucket.SessionID
	record := &postgres.MetricRecord{
		WebsiteID:   websiteID,
		PageID:      page.ID,
		TimestampMs: bucket.TimestampMs,
		CLS:         bucket.Metric("cls"),
		FID:         bucket.Metric("fid"),
		LCP:         bucket.Metric("lcp"),
		INP:         bucket.Metric("inp"),
		TTFB:        bucket.Metric("ttfb"),
		DeviceType:  bucket.DeviceType(),
		Browser:     bucket.Browser(),
		Country:     bucket.Country(),
		SessionID:   &sessionID,
		UserID:      bucket.UserID(),
	}
	return p.metrics.Insert(ctx, tx, record)
}
