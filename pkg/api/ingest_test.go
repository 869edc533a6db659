package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/beacon/pkg/ingest"
	"github.com/platinummonkey/beacon/pkg/observability"
	"github.com/platinummonkey/beacon/pkg/queue"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func newIngestServer(t *testing.T) (*IngestServer, *queue.Queue, *queue.Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	metricsQueue := queue.New(client, queue.MetricsQueue, testLogger(), nil)
	errorsQueue := queue.New(client, queue.ErrorsQueue, testLogger(), nil)
	return NewIngestServer(metricsQueue, errorsQueue, testLogger(), nil), metricsQueue, errorsQueue, mr
}

const validBatch = `{
	"projectKey": "demo",
	"events": [
		{"type": "web_vital", "name": "LCP", "value": 1200, "ts": 1700000000000,
		 "page": "https://example.com/home", "sessionId": "s1"}
	]
}`

func TestIngestAcceptsValidBatch(t *testing.T) {
	s, metricsQueue, _, _ := newIngestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader(validBatch))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]bool
	json.NewDecoder(rec.Body).Decode(&body)
	if !body["accepted"] {
		t.Errorf("expected accepted:true, got %v", body)
	}

	// The batch is on the queue, untouched.
	job, err := metricsQueue.Dequeue(context.Background(), time.Second)
	if err != nil || job == nil {
		t.Fatalf("expected a queued job, got %v, %v", job, err)
	}
	var queued ingest.Batch
	if err := json.Unmarshal(job.Payload, &queued); err != nil {
		t.Fatalf("payload did not round-trip: %v", err)
	}
	if queued.ProjectKey != "demo" || len(queued.Events) != 1 {
		t.Errorf("unexpected queued batch: %+v", queued)
	}
}

func TestIngestRejectsInvalidBatchWithAllDetails(t *testing.T) {
	s, metricsQueue, _, _ := newIngestServer(t)

	payload := `{"events": [{"type": "nonsense", "page": "https://example.com/", "sessionId": "s1", "ts": 1}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var body struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	// Both the missing projectKey and the bad event type are reported.
	if len(body.Details) != 3 {
		t.Errorf("expected 3 violations, got %v", body.Details)
	}

	// Nothing was enqueued.
	if depth, _ := metricsQueue.Depth(context.Background()); depth != 0 {
		t.Errorf("rejected batch must not be enqueued, depth=%d", depth)
	}
}

func TestIngestRejectsMalformedJSON(t *testing.T) {
	s, _, _, _ := newIngestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed JSON, got %d", rec.Code)
	}
}

func TestIngestQueueFailureIs500(t *testing.T) {
	s, _, _, mr := newIngestServer(t)
	mr.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader(validBatch))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 when the queue is down, got %d", rec.Code)
	}
}

func TestErrorsEndpointAcceptsReport(t *testing.T) {
	s, _, errorsQueue, _ := newIngestServer(t)

	payload := `{"projectKey": "demo", "page": "https://example.com/checkout",
		"error": {"message": "boom", "stack": "Error: boom"}, "sessionId": "s1"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/errors", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	job, err := errorsQueue.Dequeue(context.Background(), time.Second)
	if err != nil || job == nil {
		t.Fatalf("expected a queued job, got %v, %v", job, err)
	}
	var queued ingest.ErrorReport
	if err := json.Unmarshal(job.Payload, &queued); err != nil {
		t.Fatalf("payload did not round-trip: %v", err)
	}
	if queued.Error == nil || queued.Error.Message != "boom" {
		t.Errorf("unexpected queued report: %+v", queued)
	}
}

func TestErrorsEndpointRejectsIncompleteReport(t *testing.T) {
	s, _, _, _ := newIngestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/errors", strings.NewReader(`{"projectKey": "demo"}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestIngestMethodNotAllowed(t *testing.T) {
	s, _, _, _ := newIngestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ingest", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}
