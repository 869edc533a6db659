package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/platinummonkey/beacon/pkg/cache"
	"github.com/platinummonkey/beacon/pkg/observability"
)

// Sentinel errors the API layer maps to 400 responses.
var (
	ErrInvalidDimension = errors.New("invalid breakdown dimension")
	ErrInvalidMetric    = errors.New("invalid metric name")
)

// metricColumns whitelists the vital columns queryable by name. Values
// are interpolated into SQL, so membership here is the injection guard.
var metricColumns = map[string]string{
	"cls":  "cls",
	"fid":  "fid",
	"lcp":  "lcp",
	"inp":  "inp",
	"ttfb": "ttfb",
}

// dimensionColumns maps public breakdown dimensions to columns.
var dimensionColumns = map[string]string{
	"device_type": "device_type",
	"browser":     "browser",
	"country":     "country",
}

// MetricPercentiles is one vital's percentile spread.
type MetricPercentiles struct {
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// Summary is the project-wide percentile summary for a time range.
type Summary struct {
	Range   string                       `json:"range"`
	Samples int64                        `json:"samples"`
	Metrics map[string]MetricPercentiles `json:"metrics"`
}

// TimePoint is one time-series bucket carrying the same percentile
// spread per vital as the project summary.
type TimePoint struct {
	Bucket  time.Time                    `json:"bucket"`
	Samples int64                        `json:"samples"`
	Metrics map[string]MetricPercentiles `json:"metrics"`
}

// ProjectPage is one row of the project page listing.
type ProjectPage struct {
	PageID   int64     `json:"pageId"`
	Path     string    `json:"path"`
	PageName string    `json:"pageName"`
	Samples  int64     `json:"samples"`
	LCPP95   float64   `json:"lcpP95"`
	LastSeen time.Time `json:"lastSeen"`
}

// SlowPage is one row of the slow-page ranking.
type SlowPage struct {
	PageID  int64   `json:"pageId"`
	Path    string  `json:"path"`
	Samples int64   `json:"samples"`
	Metric  string  `json:"metric"`
	P95     float64 `json:"p95"`
}

// BreakdownRow is one segment of a dimensional breakdown.
type BreakdownRow struct {
	Segment string  `json:"segment"`
	Samples int64   `json:"samples"`
	LCPP95  float64 `json:"lcpP95"`
	FIDP95  float64 `json:"fidP95"`
	CLSP95  float64 `json:"clsP95"`
}

// PageMetricRow is one raw sample for a page, as stored.
type PageMetricRow struct {
	Timestamp  time.Time `json:"timestamp"`
	CLS        *float64  `json:"cls"`
	FID        *float64  `json:"fid"`
	LCP        *float64  `json:"lcp"`
	INP        *float64  `json:"inp"`
	TTFB       *float64  `json:"ttfb"`
	DeviceType *string   `json:"deviceType"`
	Browser    *string   `json:"browser"`
	Country    *string   `json:"country"`
	SessionID  *string   `json:"sessionId"`
}

// JourneyStep is one page visit within a session, in time order.
type JourneyStep struct {
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	CLS       *float64  `json:"cls"`
	FID       *float64  `json:"fid"`
	LCP       *float64  `json:"lcp"`
	INP       *float64  `json:"inp"`
	TTFB      *float64  `json:"ttfb"`
}

// SessionError is one JavaScript error within a session.
type SessionError struct {
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	Message   string    `json:"message"`
	Stack     *string   `json:"stack"`
}

// Service answers dashboard queries over the raw metrics store.
// Aggregate queries are cached; detail queries are not.
type Service struct {
	db     *sql.DB
	cache  *cache.Cache
	ttl    map[string]time.Duration
	logger *observability.Logger
}

// NewService creates a query service. ttl maps cache key types
// (summary, timeseries, breakdown, pages, slow_pages) to lifetimes;
// missing entries fall back to one minute.
func NewService(db *sql.DB, c *cache.Cache, ttl map[string]time.Duration, logger *observability.Logger) *Service {
	return &Service{db: db, cache: c, ttl: ttl, logger: logger}
}

func (s *Service) ttlFor(keyType string) time.Duration {
	if d, ok := s.ttl[keyType]; ok {
		return d
	}
	return time.Minute
}

const summaryQuery = `
SELECT
	COUNT(*),
	percentile_cont(ARRAY[0.5, 0.75, 0.95, 0.99]) WITHIN GROUP (ORDER BY m.cls),
	percentile_cont(ARRAY[0.5, 0.75, 0.95, 0.99]) WITHIN GROUP (ORDER BY m.fid),
	percentile_cont(ARRAY[0.5, 0.75, 0.95, 0.99]) WITHIN GROUP (ORDER BY m.lcp),
	percentile_cont(ARRAY[0.5, 0.75, 0.95, 0.99]) WITHIN GROUP (ORDER BY m.inp),
	percentile_cont(ARRAY[0.5, 0.75, 0.95, 0.99]) WITHIN GROUP (ORDER BY m.ttfb)
FROM metrics m
JOIN websites w ON w.id = m.website_id
WHERE w.project_key = $1
  AND m.timestamp >= NOW() - $2::interval`

// GetSummary returns the project-wide percentile summary for a range.
// A project with no samples gets a zeroed summary, not an error.
func (s *Service) GetSummary(ctx context.Context, projectKey, timeRange string) (*Summary, error) {
	key := cache.Key("summary", projectKey, timeRange)
	return cache.Cached(ctx, s.cache, key, s.ttlFor("summary"), func(ctx context.Context) (*Summary, error) {
		d := ParseTimeRange(timeRange)

		var samples int64
		var cls, fid, lcp, inp, ttfb pq.Float64Array
		err := s.db.QueryRowContext(ctx, summaryQuery, projectKey, rangeInterval(d)).
			Scan(&samples, &cls, &fid, &lcp, &inp, &ttfb)
		if err != nil {
			return nil, fmt.Errorf("summary query failed: %w", err)
		}

		return &Summary{
			Range:   timeRange,
			Samples: samples,
			Metrics: map[string]MetricPercentiles{
				"cls":  toPercentiles("cls", cls),
				"fid":  toPercentiles("fid", fid),
				"lcp":  toPercentiles("lcp", lcp),
				"inp":  toPercentiles("inp", inp),
				"ttfb": toPercentiles("ttfb", ttfb),
			},
		}, nil
	})
}

// toPercentiles unpacks a percentile_cont array result. A NULL array
// (no samples) yields zeros.
func toPercentiles(name string, arr pq.Float64Array) MetricPercentiles {
	if len(arr) < 4 {
		return MetricPercentiles{}
	}
	return MetricPercentiles{
		P50: RoundMetric(name, arr[0]),
		P75: RoundMetric(name, arr[1]),
		P95: RoundMetric(name, arr[2]),
		P99: RoundMetric(name, arr[3]),
	}
}

const timeSeriesQuery = `
SELECT
	time_bucket($3::interval, m.timestamp) AS bucket,
	COUNT(*),
	percentile_cont(ARRAY[0.5, 0.75, 0.95, 0.99]) WITHIN GROUP (ORDER BY m.cls),
	percentile_cont(ARRAY[0.5, 0.75, 0.95, 0.99]) WITHIN GROUP (ORDER BY m.fid),
	percentile_cont(ARRAY[0.5, 0.75, 0.95, 0.99]) WITHIN GROUP (ORDER BY m.lcp),
	percentile_cont(ARRAY[0.5, 0.75, 0.95, 0.99]) WITHIN GROUP (ORDER BY m.inp),
	percentile_cont(ARRAY[0.5, 0.75, 0.95, 0.99]) WITHIN GROUP (ORDER BY m.ttfb)
FROM metrics m
JOIN websites w ON w.id = m.website_id
WHERE w.project_key = $1
  AND m.timestamp >= NOW() - $2::interval
GROUP BY bucket
ORDER BY bucket ASC`

// GetTimeSeries returns bucketed percentiles per vital, oldest first.
// The interval accepts "30m"/"6h" shorthand or "1 hour" spelled out.
func (s *Service) GetTimeSeries(ctx context.Context, projectKey, timeRange, interval string) ([]TimePoint, error) {
	key := cache.Key("timeseries", projectKey, timeRange, interval)
	return cache.Cached(ctx, s.cache, key, s.ttlFor("timeseries"), func(ctx context.Context) ([]TimePoint, error) {
		d := ParseTimeRange(timeRange)
		bucket := ParseInterval(interval)

		rows, err := s.db.QueryContext(ctx, timeSeriesQuery, projectKey, rangeInterval(d), rangeInterval(bucket))
		if err != nil {
			return nil, fmt.Errorf("timeseries query failed: %w", err)
		}
		defer rows.Close()

		points := make([]TimePoint, 0)
		for rows.Next() {
			var p TimePoint
			var cls, fid, lcp, inp, ttfb pq.Float64Array
			if err := rows.Scan(&p.Bucket, &p.Samples, &cls, &fid, &lcp, &inp, &ttfb); err != nil {
				return nil, fmt.Errorf("failed to scan timeseries row: %w", err)
			}
			p.Metrics = map[string]MetricPercentiles{
				"cls":  toPercentiles("cls", cls),
				"fid":  toPercentiles("fid", fid),
				"lcp":  toPercentiles("lcp", lcp),
				"inp":  toPercentiles("inp", inp),
				"ttfb": toPercentiles("ttfb", ttfb),
			}
			points = append(points, p)
		}
		return points, rows.Err()
	})
}

const projectPagesQuery = `
SELECT p.id, p.path, p.page_name, COUNT(m.id) AS samples,
	percentile_cont(0.95) WITHIN GROUP (ORDER BY m.lcp),
	MAX(m.timestamp)
FROM pages p
JOIN websites w ON w.id = p.website_id
LEFT JOIN metrics m ON m.page_id = p.id
  AND m.timestamp >= NOW() - INTERVAL '24 hours'
WHERE w.project_key = $1
GROUP BY p.id, p.path, p.page_name
ORDER BY samples DESC
LIMIT $2`

// GetProjectPages lists the project's pages with their last-24h sample
// counts. Pages with no recent samples still appear, with zero counts.
func (s *Service) GetProjectPages(ctx context.Context, projectKey string, limit int) ([]ProjectPage, error) {
	if limit <= 0 {
		limit = 50
	}
	key := cache.Key("pages", projectKey, fmt.Sprintf("%d", limit))
	return cache.Cached(ctx, s.cache, key, s.ttlFor("pages"), func(ctx context.Context) ([]ProjectPage, error) {
		rows, err := s.db.QueryContext(ctx, projectPagesQuery, projectKey, limit)
		if err != nil {
			return nil, fmt.Errorf("pages query failed: %w", err)
		}
		defer rows.Close()

		pages := make([]ProjectPage, 0)
		for rows.Next() {
			var p ProjectPage
			var lcp sql.NullFloat64
			var lastSeen sql.NullTime
			if err := rows.Scan(&p.PageID, &p.Path, &p.PageName, &p.Samples, &lcp, &lastSeen); err != nil {
				return nil, fmt.Errorf("failed to scan page row: %w", err)
			}
			p.LCPP95 = RoundMetric("lcp", lcp.Float64)
			p.LastSeen = lastSeen.Time
			pages = append(pages, p)
		}
		return pages, rows.Err()
	})
}

// slowPagesQuery interpolates a whitelisted column name; callers must
// resolve it through metricColumns first.
const slowPagesQuery = `
SELECT p.id, p.path, COUNT(*) AS samples,
	percentile_cont(0.95) WITHIN GROUP (ORDER BY m.%[1]s) AS p95
FROM metrics m
JOIN pages p ON p.id = m.page_id
JOIN websites w ON w.id = m.website_id
WHERE w.project_key = $1
  AND m.timestamp >= NOW() - INTERVAL '24 hours'
  AND m.%[1]s IS NOT NULL
GROUP BY p.id, p.path
HAVING COUNT(*) >= 10
ORDER BY p95 DESC
LIMIT $2`

// GetSlowPages ranks pages by the p95 of one vital over the last 24
// hours, ignoring pages with fewer than 10 samples. An empty metric
// defaults to lcp; an unknown one is rejected.
func (s *Service) GetSlowPages(ctx context.Context, projectKey, metric string, limit int) ([]SlowPage, error) {
	if metric == "" {
		metric = "lcp"
	}
	column, ok := metricColumns[metric]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMetric, metric)
	}
	if limit <= 0 {
		limit = 10
	}

	key := cache.Key("slow_pages", projectKey, metric, fmt.Sprintf("%d", limit))
	return cache.Cached(ctx, s.cache, key, s.ttlFor("slow_pages"), func(ctx context.Context) ([]SlowPage, error) {
		query := fmt.Sprintf(slowPagesQuery, column)
		rows, err := s.db.QueryContext(ctx, query, projectKey, limit)
		if err != nil {
			return nil, fmt.Errorf("slow pages query failed: %w", err)
		}
		defer rows.Close()

		pages := make([]SlowPage, 0)
		for rows.Next() {
			var p SlowPage
			var p95 sql.NullFloat64
			if err := rows.Scan(&p.PageID, &p.Path, &p.Samples, &p95); err != nil {
				return nil, fmt.Errorf("failed to scan slow page row: %w", err)
			}
			p.Metric = metric
			p.P95 = RoundMetric(metric, p95.Float64)
			pages = append(pages, p)
		}
		return pages, rows.Err()
	})
}

// breakdownQuery interpolates a whitelisted column name resolved
// through dimensionColumns.
const breakdownQuery = `
SELECT COALESCE(m.%s, 'unknown') AS segment, COUNT(*) AS samples,
	percentile_cont(0.95) WITHIN GROUP (ORDER BY m.lcp),
	percentile_cont(0.95) WITHIN GROUP (ORDER BY m.fid),
	percentile_cont(0.95) WITHIN GROUP (ORDER BY m.cls)
FROM metrics m
JOIN websites w ON w.id = m.website_id
WHERE w.project_key = $1
  AND m.timestamp >= NOW() - $2::interval
GROUP BY segment
ORDER BY samples DESC`

// GetBreakdown segments a project's samples by device, browser or
// country. An unknown dimension is rejected; a project with no data
// returns an empty list.
func (s *Service) GetBreakdown(ctx context.Context, projectKey, dimension, timeRange string) ([]BreakdownRow, error) {
	column, ok := dimensionColumns[dimension]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDimension, dimension)
	}

	key := cache.Key("breakdown", projectKey, dimension, timeRange)
	return cache.Cached(ctx, s.cache, key, s.ttlFor("breakdown"), func(ctx context.Context) ([]BreakdownRow, error) {
		d := ParseTimeRange(timeRange)
		query := fmt.Sprintf(breakdownQuery, column)
		rows, err := s.db.QueryContext(ctx, query, projectKey, rangeInterval(d))
		if err != nil {
			return nil, fmt.Errorf("breakdown query failed: %w", err)
		}
		defer rows.Close()

		segments := make([]BreakdownRow, 0)
		for rows.Next() {
			var b BreakdownRow
			var lcp, fid, cls sql.NullFloat64
			if err := rows.Scan(&b.Segment, &b.Samples, &lcp, &fid, &cls); err != nil {
				return nil, fmt.Errorf("failed to scan breakdown row: %w", err)
			}
			b.LCPP95 = RoundMetric("lcp", lcp.Float64)
			b.FIDP95 = RoundMetric("fid", fid.Float64)
			b.CLSP95 = RoundMetric("cls", cls.Float64)
			segments = append(segments, b)
		}
		return segments, rows.Err()
	})
}

const pageMetricsQuery = `
SELECT timestamp, cls, fid, lcp, inp, ttfb,
	device_type, browser, country, session_id
FROM metrics
WHERE page_id = $1
  AND timestamp >= NOW() - $2::interval
ORDER BY timestamp DESC
LIMIT 1000`

// GetPageMetrics lists a page's raw samples, newest first, capped at
// 1000 rows. Detail reads are not cached.
func (s *Service) GetPageMetrics(ctx context.Context, pageID int64, timeRange string) ([]PageMetricRow, error) {
	d := ParseTimeRange(timeRange)

	rows, err := s.db.QueryContext(ctx, pageMetricsQuery, pageID, rangeInterval(d))
	if err != nil {
		return nil, fmt.Errorf("page metrics query failed: %w", err)
	}
	defer rows.Close()

	samples := make([]PageMetricRow, 0)
	for rows.Next() {
		var m PageMetricRow
		err := rows.Scan(&m.Timestamp, &m.CLS, &m.FID, &m.LCP, &m.INP, &m.TTFB,
			&m.DeviceType, &m.Browser, &m.Country, &m.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page metric row: %w", err)
		}
		samples = append(samples, m)
	}
	return samples, rows.Err()
}

const sessionJourneyQuery = `
SELECT m.timestamp, p.path, m.cls, m.fid, m.lcp, m.inp, m.ttfb
FROM metrics m
JOIN pages p ON p.id = m.page_id
WHERE m.session_id = $1
ORDER BY m.timestamp ASC`

// GetSessionJourney returns a session's page visits in time order.
func (s *Service) GetSessionJourney(ctx context.Context, sessionID string) ([]JourneyStep, error) {
	rows, err := s.db.QueryContext(ctx, sessionJourneyQuery, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session journey query failed: %w", err)
	}
	defer rows.Close()

	steps := make([]JourneyStep, 0)
	for rows.Next() {
		var step JourneyStep
		if err := rows.Scan(&step.Timestamp, &step.Path, &step.CLS, &step.FID, &step.LCP, &step.INP, &step.TTFB); err != nil {
			return nil, fmt.Errorf("failed to scan journey row: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

const sessionErrorsQuery = `
SELECT e.timestamp, p.path, e.error_message, e.stack_trace
FROM js_errors e
JOIN pages p ON p.id = e.page_id
WHERE e.session_id = $1
ORDER BY e.timestamp ASC`

// GetSessionErrors returns a session's JavaScript errors in time order.
func (s *Service) GetSessionErrors(ctx context.Context, sessionID string) ([]SessionError, error) {
	rows, err := s.db.QueryContext(ctx, sessionErrorsQuery, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session errors query failed: %w", err)
	}
	defer rows.Close()

	errs := make([]SessionError, 0)
	for rows.Next() {
		var e SessionError
		if err := rows.Scan(&e.Timestamp, &e.Path, &e.Message, &e.Stack); err != nil {
			return nil, fmt.Errorf("failed to scan error row: %w", err)
		}
		errs = append(errs, e)
	}
	return errs, rows.Err()
}
