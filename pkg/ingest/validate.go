package ingest

import (
	"fmt"
	"strings"
)

// ValidateBatch checks an ingestion batch against the schema and returns
// every violation found, one message per field, never just the first.
// An empty slice means the batch is valid. Unknown extra fields are
// tolerated by the JSON decoding layer and are not reported here.
func ValidateBatch(b *Batch) []string {
	var details []string

	if b == nil {
		return []string{"request body is required"}
	}
	if strings.TrimSpace(b.ProjectKey) == "" {
		details = append(details, "projectKey is required")
	}
	if b.Events == nil {
		details = append(details, "events is required")
		return details
	}
	if len(b.Events) == 0 {
		details = append(details, "events must contain at least 1 item")
	}
	if len(b.Events) > MaxEventsPerBatch {
		details = append(details, fmt.Sprintf("events must contain at most %d items", MaxEventsPerBatch))
	}

	for i, ev := range b.Events {
		details = append(details, validateEvent(i, &ev)...)
	}

	return details
}

func validateEvent(i int, ev *Event) []string {
	var details []string

	switch ev.Type {
	case EventTypeWebVital, EventTypeResource, EventTypeError:
	default:
		details = append(details, fmt.Sprintf(
			"events[%d].type must be one of [%s, %s, %s]",
			i, EventTypeWebVital, EventTypeResource, EventTypeError))
	}
	if ev.Name == "" {
		details = append(details, fmt.Sprintf("events[%d].name is required", i))
	}
	if ev.TS == nil {
		details = append(details, fmt.Sprintf("events[%d].ts is required", i))
	}
	if ev.Page == "" {
		details = append(details, fmt.Sprintf("events[%d].page is required", i))
	}
	if ev.SessionID == "" {
		details = append(details, fmt.Sprintf("events[%d].sessionId is required", i))
	}

	return details
}

// ValidateErrorReport checks a single error report, accumulating every
// violation the same way ValidateBatch does.
func ValidateErrorReport(r *ErrorReport) []string {
	var details []string

	if r == nil {
		return []string{"request body is required"}
	}
	if strings.TrimSpace(r.ProjectKey) == "" {
		details = append(details, "projectKey is required")
	}
	if r.Error == nil {
		details = append(details, "error is required")
	} else if r.Error.Message == "" {
		details = append(details, "error.message is required")
	}
	if r.Page == "" {
		details = append(details, "page is required")
	}

	return details
}
