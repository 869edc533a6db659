package pipeline

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/platinummonkey/beacon/pkg/ingest"
	"github.com/platinummonkey/beacon/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestMetricsProcessorNewProject(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	// Unknown project: lookup misses, then the website is created with
	// the domain derived from the first event's page URL.
	mock.ExpectQuery("SELECT id FROM websites").
		WithArgs("demo").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("INSERT INTO websites").
		WithArgs("demo", "demo", "example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_key", "name", "domain"}).
			AddRow(3, "demo", "demo", "example.com"))
	mock.ExpectQuery("INSERT INTO pages").
		WithArgs(int64(3), "/home", "/home").
		WillReturnRows(sqlmock.NewRows([]string{"id", "website_id", "path", "page_name"}).
			AddRow(11, 3, "/home", "/home"))
	mock.ExpectExec("INSERT INTO metrics").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p := NewMetricsProcessor(db, testLogger())
	batch := &ingest.Batch{
		ProjectKey: "demo",
		Events: []ingest.Event{
			vital("https://example.com/home?ref=x", "LCP", 1200, 1700000000000),
		},
	}

	if err := p.Process(context.Background(), batch); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestMetricsProcessorRollsBackOnPageFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM websites").
		WithArgs("demo").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectQuery("INSERT INTO pages").
		WillReturnRows(sqlmock.NewRows([]string{"id", "website_id", "path", "page_name"}).
			AddRow(11, 3, "/a", "/a"))
	mock.ExpectExec("INSERT INTO metrics").
		WillReturnError(errors.New("insert blew up"))
	mock.ExpectRollback()

	p := NewMetricsProcessor(db, testLogger())
	batch := &ingest.Batch{
		ProjectKey: "demo",
		Events: []ingest.Event{
			vital("https://example.com/a", "LCP", 1200, 1),
			vital("https://example.com/b", "LCP", 900, 2),
		},
	}

	// One bad page aborts the whole batch: no second page upsert, no
	// partial commit.
	if err := p.Process(context.Background(), batch); err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestMetricsProcessorEmptyBatchIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	p := NewMetricsProcessor(db, testLogger())
	if err := p.Process(context.Background(), &ingest.Batch{ProjectKey: "demo"}); err != nil {
		t.Fatalf("empty batch must not error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestErrorsProcessorInsertsReport(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM websites").
		WithArgs("demo").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectQuery("INSERT INTO pages").
		WithArgs(int64(3), "/checkout", "/checkout").
		WillReturnRows(sqlmock.NewRows([]string{"id", "website_id", "path", "page_name"}).
			AddRow(11, 3, "/checkout", "/checkout"))
	mock.ExpectExec("INSERT INTO js_errors").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ts := 1700000000000.0
	p := NewErrorsProcessor(db, testLogger())
	report := &ingest.ErrorReport{
		ProjectKey: "demo",
		Error:      &ingest.ErrorDetail{Message: "boom", Stack: "Error: boom"},
		Page:       "https://example.com/checkout",
		SessionID:  "s1",
		Timestamp:  &ts,
	}

	if err := p.Process(context.Background(), report); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestErrorsProcessorDropsUnknownProject(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM websites").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	p := NewErrorsProcessor(db, testLogger())
	report := &ingest.ErrorReport{
		ProjectKey: "ghost",
		Error:      &ingest.ErrorDetail{Message: "boom"},
		Page:       "https://example.com/",
	}

	// Unknown project: dropped silently, not an error (an error would
	// trigger a pointless retry).
	if err := p.Process(context.Background(), report); err != nil {
		t.Fatalf("expected nil for unknown project, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
