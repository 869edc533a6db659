package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/platinummonkey/beacon/pkg/observability"
)

// rollupVitals fixes the column order used by the rollup statements.
var rollupVitals = [5]string{"cls", "fid", "lcp", "inp", "ttfb"}

// Rollup condenses a day of raw samples into per-page percentile rows
// so dashboards can query months of history without touching the raw
// table. Percentiles are computed here rather than in SQL so the job
// and the query service agree on interpolation.
type Rollup struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewRollup creates a rollup job.
func NewRollup(db *sql.DB, logger *observability.Logger) *Rollup {
	return &Rollup{db: db, logger: logger}
}

// pageSamples accumulates one page's raw values for a day.
type pageSamples struct {
	websiteID int64
	values    map[string][]float64
}

const rollupSelectQuery = `
SELECT page_id, website_id, cls, fid, lcp, inp, ttfb
FROM metrics
WHERE timestamp >= $1 AND timestamp < $2`

const rollupUpsertQuery = `
INSERT INTO metrics_daily (
	page_id, website_id, date, samples,
	cls_p50, cls_p75, cls_p95, cls_p99,
	fid_p50, fid_p75, fid_p95, fid_p99,
	lcp_p50, lcp_p75, lcp_p95, lcp_p99,
	inp_p50, inp_p75, inp_p95, inp_p99,
	ttfb_p50, ttfb_p75, ttfb_p95, ttfb_p99
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
	$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
ON CONFLICT (page_id, date) DO UPDATE SET
	samples = EXCLUDED.samples,
	cls_p50 = EXCLUDED.cls_p50, cls_p75 = EXCLUDED.cls_p75,
	cls_p95 = EXCLUDED.cls_p95, cls_p99 = EXCLUDED.cls_p99,
	fid_p50 = EXCLUDED.fid_p50, fid_p75 = EXCLUDED.fid_p75,
	fid_p95 = EXCLUDED.fid_p95, fid_p99 = EXCLUDED.fid_p99,
	lcp_p50 = EXCLUDED.lcp_p50, lcp_p75 = EXCLUDED.lcp_p75,
	lcp_p95 = EXCLUDED.lcp_p95, lcp_p99 = EXCLUDED.lcp_p99,
	inp_p50 = EXCLUDED.inp_p50, inp_p75 = EXCLUDED.inp_p75,
	inp_p95 = EXCLUDED.inp_p95, inp_p99 = EXCLUDED.inp_p99,
	ttfb_p50 = EXCLUDED.ttfb_p50, ttfb_p75 = EXCLUDED.ttfb_p75,
	ttfb_p95 = EXCLUDED.ttfb_p95, ttfb_p99 = EXCLUDED.ttfb_p99`

// RollupDay recomputes the daily rollup for the UTC day containing
// day. Re-running the job for a day is idempotent.
func (r *Rollup) RollupDay(ctx context.Context, day time.Time) error {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	pages, err := r.collect(ctx, start, end)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		r.logger.WithField("date", start.Format("2006-01-02")).Info("no samples to roll up")
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rollup transaction: %w", err)
	}
	defer tx.Rollback()

	pageIDs := make([]int64, 0, len(pages))
	for pageID := range pages {
		pageIDs = append(pageIDs, pageID)
	}
	sort.Slice(pageIDs, func(i, j int) bool { return pageIDs[i] < pageIDs[j] })

	for _, pageID := range pageIDs {
		samples := pages[pageID]
		args := make([]interface{}, 0, 24)
		args = append(args, pageID, samples.websiteID, start, sampleCount(samples))
		for _, vital := range rollupVitals {
			values := samples.values[vital]
			for _, p := range [4]float64{50, 75, 95, 99} {
				args = append(args, RoundMetric(vital, Percentile(values, p)))
			}
		}
		if _, err := tx.ExecContext(ctx, rollupUpsertQuery, args...); err != nil {
			return fmt.Errorf("failed to upsert rollup for page %d: %w", pageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rollup: %w", err)
	}

	r.logger.WithField("date", start.Format("2006-01-02")).
		WithField("pages", len(pages)).
		Info("daily rollup complete")
	return nil
}

func (r *Rollup) collect(ctx context.Context, start, end time.Time) (map[int64]*pageSamples, error) {
	rows, err := r.db.QueryContext(ctx, rollupSelectQuery, start, end)
	if err != nil {
		return nil, fmt.Errorf("rollup select failed: %w", err)
	}
	defer rows.Close()

	pages := make(map[int64]*pageSamples)
	for rows.Next() {
		var pageID, websiteID int64
		var vitals [5]sql.NullFloat64
		if err := rows.Scan(&pageID, &websiteID, &vitals[0], &vitals[1], &vitals[2], &vitals[3], &vitals[4]); err != nil {
			return nil, fmt.Errorf("failed to scan rollup row: %w", err)
		}

		page, ok := pages[pageID]
		if !ok {
			page = &pageSamples{websiteID: websiteID, values: make(map[string][]float64)}
			pages[pageID] = page
		}
		for i, vital := range rollupVitals {
			if vitals[i].Valid {
				page.values[vital] = append(page.values[vital], vitals[i].Float64)
			}
		}
	}
	return pages, rows.Err()
}

// sampleCount is the largest per-vital sample count for the page; a
// raw row only counts toward vitals it actually reported.
func sampleCount(s *pageSamples) int64 {
	var max int
	for _, values := range s.values {
		if len(values) > max {
			max = len(values)
		}
	}
	return int64(max)
}

// PruneRawMetrics deletes raw samples and error reports older than the
// retention window, returning the rows removed from each table.
func (r *Rollup) PruneRawMetrics(ctx context.Context, retention time.Duration) (int64, int64, error) {
	interval := rangeInterval(retention)

	res, err := r.db.ExecContext(ctx, `DELETE FROM metrics WHERE timestamp < NOW() - $1::interval`, interval)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prune metrics: %w", err)
	}
	metricsDeleted, _ := res.RowsAffected()

	res, err = r.db.ExecContext(ctx, `DELETE FROM js_errors WHERE timestamp < NOW() - $1::interval`, interval)
	if err != nil {
		return metricsDeleted, 0, fmt.Errorf("failed to prune js_errors: %w", err)
	}
	errorsDeleted, _ := res.RowsAffected()

	r.logger.WithField("metrics_deleted", metricsDeleted).
		WithField("errors_deleted", errorsDeleted).
		Info("retention sweep complete")
	return metricsDeleted, errorsDeleted, nil
}
