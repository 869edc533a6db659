package postgres

import (
	"context"
	"fmt"
)

// ErrorRecord is one reported JavaScript error.
type ErrorRecord struct {
	WebsiteID    int64
	PageID       int64
	TimestampMs  float64
	ErrorMessage string
	StackTrace   *string
	UserAgent    *string
	DeviceType   *string
	Browser      *string
	Country      *string
	SessionID    *string
}

// ErrorRepo persists error records.
type ErrorRepo struct{}

// Insert appends one error record.
func (ErrorRepo) Insert(ctx context.Context, q Querier, e *ErrorRecord) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO js_errors (
			website_id, page_id, timestamp,
			error_message, stack_trace, user_agent,
			device_type, browser, country, session_id
		) VALUES ($1, $2, to_timestamp($3/1000.0), $4, $5, $6, $7, $8, $9, $10)`,
		e.WebsiteID, e.PageID, e.TimestampMs,
		e.ErrorMessage, e.StackTrace, e.UserAgent,
		e.DeviceType, e.Browser, e.Country, e.SessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert error: %w", err)
	}
	return nil
}
