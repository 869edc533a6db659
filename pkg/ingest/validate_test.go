package ingest

import (
	"strings"
	"testing"
)

func f64(v float64) *float64 { return &v }

func validEvent() Event {
	return Event{
		Type:      EventTypeWebVital,
		Name:      "LCP",
		Value:     f64(1200),
		TS:        f64(1700000000000),
		Page:      "https://example.com/home",
		SessionID: "s1",
	}
}

func TestValidateBatchValid(t *testing.T) {
	b := &Batch{
		ProjectKey: "demo",
		Events:     []Event{validEvent()},
	}

	if details := ValidateBatch(b); len(details) != 0 {
		t.Errorf("expected no validation errors, got %v", details)
	}
}

func TestValidateBatchMissingProjectKey(t *testing.T) {
	b := &Batch{Events: []Event{validEvent()}}

	details := ValidateBatch(b)
	if len(details) != 1 {
		t.Fatalf("expected 1 error, got %v", details)
	}
	if details[0] != "projectKey is required" {
		t.Errorf("unexpected message: %s", details[0])
	}
}

func TestValidateBatchEmptyEvents(t *testing.T) {
	b := &Batch{ProjectKey: "demo", Events: []Event{}}

	details := ValidateBatch(b)
	if len(details) != 1 || !strings.Contains(details[0], "at least 1") {
		t.Errorf("expected min-items error, got %v", details)
	}
}

func TestValidateBatchNilEvents(t *testing.T) {
	b := &Batch{ProjectKey: "demo"}

	details := ValidateBatch(b)
	if len(details) != 1 || details[0] != "events is required" {
		t.Errorf("expected events required error, got %v", details)
	}
}

func TestValidateBatchTooManyEvents(t *testing.T) {
	events := make([]Event, MaxEventsPerBatch+1)
	for i := range events {
		events[i] = validEvent()
	}
	b := &Batch{ProjectKey: "demo", Events: events}

	details := ValidateBatch(b)
	if len(details) != 1 || !strings.Contains(details[0], "at most 1000") {
		t.Errorf("expected max-items error, got %v", details)
	}
}

func TestValidateBatchEnumeratesAllViolations(t *testing.T) {
	// Two invalid events: each must contribute at least one message,
	// and field references must carry the event index.
	bad1 := validEvent()
	bad1.Type = "click"
	bad1.Name = ""

	bad2 := validEvent()
	bad2.TS = nil
	bad2.Page = ""
	bad2.SessionID = ""

	b := &Batch{
		ProjectKey: "",
		Events:     []Event{validEvent(), bad1, bad2},
	}

	details := ValidateBatch(b)

	want := []string{
		"projectKey is required",
		"events[1].type must be one of [web_vital, resource, error]",
		"events[1].name is required",
		"events[2].ts is required",
		"events[2].page is required",
		"events[2].sessionId is required",
	}
	if len(details) != len(want) {
		t.Fatalf("expected %d errors, got %d: %v", len(want), len(details), details)
	}
	for i, msg := range want {
		if details[i] != msg {
			t.Errorf("details[%d] = %q, want %q", i, details[i], msg)
		}
	}
}

func TestValidateErrorReport(t *testing.T) {
	tests := []struct {
		name   string
		report *ErrorReport
		want   []string
	}{
		{
			name: "valid",
			report: &ErrorReport{
				ProjectKey: "demo",
				Error:      &ErrorDetail{Message: "boom"},
				Page:       "https://example.com/checkout",
			},
			want: nil,
		},
		{
			name:   "missing everything",
			report: &ErrorReport{},
			want: []string{
				"projectKey is required",
				"error is required",
				"page is required",
			},
		},
		{
			name: "empty error message",
			report: &ErrorReport{
				ProjectKey: "demo",
				Error:      &ErrorDetail{},
				Page:       "https://example.com/",
			},
			want: []string{"error.message is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateErrorReport(tt.report)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d errors, got %v", len(tt.want), got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("details[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
