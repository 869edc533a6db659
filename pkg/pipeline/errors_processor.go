package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/beacon/pkg/ingest"
	"github.com/platinummonkey/beacon/pkg/observability"
	"github.com/platinummonkey/beacon/pkg/storage/postgres"
)

// ErrorsProcessor handles one errors job: a single JavaScript error
// report. A report for an unknown project is dropped after rollback
// rather than retried; retrying cannot make the project exist.
type ErrorsProcessor struct {
	db       *sql.DB
	websites postgres.WebsiteRepo
	pages    postgres.PageRepo
	errors   postgres.ErrorRepo
	logger   *observability.Logger
}

// NewErrorsProcessor creates an errors processor.
func NewErrorsProcessor(db *sql.DB, logger *observability.Logger) *ErrorsProcessor {
	return &ErrorsProcessor{db: db, logger: logger}
}

// Process persists one error report inside a single transaction.
func (p *ErrorsProcessor) Process(ctx context.Context, report *ingest.ErrorReport) error {
	if report.ProjectKey == "" {
		return fmt.Errorf("missing projectKey in job payload")
	}
	if report.Page == "" {
		return fmt.Errorf("missing page URL in job payload")
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	websiteID, err := p.websites.IDByProjectKey(ctx, tx, report.ProjectKey)
	if err != nil {
		return err
	}
	if websiteID == 0 {
		p.logger.WithField("project_key", report.ProjectKey).
			Warn("website not found for project, skipping error report")
		return nil
	}

	path := ExtractPath(report.Page)
	page, err := p.pages.Upsert(ctx, tx, websiteID, path, path)
	if err != nil {
		return err
	}

	timestampMs := float64(time.Now().UnixMilli())
	if report.Timestamp != nil {
		timestampMs = *report.Timestamp
	}

	record := &postgres.ErrorRecord{
		WebsiteID:    websiteID,
		PageID:       page.ID,
		TimestampMs:  timestampMs,
		ErrorMessage: report.Error.Message,
		StackTrace:   optional(report.Error.Stack),
		UserAgent:    optional(report.UserAgent),
		DeviceType:   optional(report.DeviceType),
		Browser:      optional(report.Browser),
		Country:      optional(report.Country),
		SessionID:    optional(report.SessionID),
	}
	if err := p.errors.Insert(ctx, tx, record); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit error report: %w", err)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
