package postgres

import (
	"context"
	"fmt"
)

// MetricRecord is one row in the metrics table: the vitals observed for
// one page in one session during one processing flush. All five metric
// fields are independently optional. Rows are append-only; corrections
// require a new row.
type MetricRecord struct {
	WebsiteID   int64
	PageID      int64
	TimestampMs float64
	CLS         *float64
	FID         *float64
	LCP         *float64
	INP         *float64
	TTFB        *float64
	DeviceType  *string
	Browser     *string
	Country     *string
	SessionID   *string
	UserID      *string
}

// MetricRepo persists metric records.
type MetricRepo struct{}

// Insert appends one metric record. Timestamps arrive as epoch
// milliseconds and are stored as timestamptz.
func (MetricRepo) Insert(ctx context.Context, q Querier, m *MetricRecord) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO metrics (
			website_id, page_id, timestamp,
			cls, fid, lcp, inp, ttfb,
			device_type, browser, country,
			session_id, user_id
		) VALUES ($1, $2, to_timestamp($3/1000.0), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		m.WebsiteID, m.PageID, m.TimestampMs,
		m.CLS, m.FID, m.LCP, m.INP, m.TTFB,
		m.DeviceType, m.Browser, m.Country,
		m.SessionID, m.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert metric: %w", err)
	}
	return nil
}
