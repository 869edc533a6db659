package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestWebsiteIDByProjectKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id FROM websites WHERE project_key").
		WithArgs("demo").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	id, err := (WebsiteRepo{}).IDByProjectKey(context.Background(), db, "demo")
	if err != nil {
		t.Fatalf("IDByProjectKey failed: %v", err)
	}
	if id != 7 {
		t.Errorf("expected id=7, got %d", id)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestWebsiteIDByProjectKeyUnknown(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id FROM websites WHERE project_key").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	id, err := (WebsiteRepo{}).IDByProjectKey(context.Background(), db, "nope")
	if err != nil {
		t.Fatalf("IDByProjectKey failed: %v", err)
	}
	if id != 0 {
		t.Errorf("expected id=0 for unknown project, got %d", id)
	}
}

func TestWebsiteUpsertIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	rows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "project_key", "name", "domain"}).
			AddRow(3, "demo", "demo", "example.com")
	}

	// Upserting the same project key twice yields the same row.
	mock.ExpectQuery("INSERT INTO websites").
		WithArgs("demo", "demo", "example.com").
		WillReturnRows(rows())
	mock.ExpectQuery("INSERT INTO websites").
		WithArgs("demo", "demo", "example.com").
		WillReturnRows(rows())

	repo := WebsiteRepo{}
	first, err := repo.Upsert(context.Background(), db, "demo", "demo", "example.com")
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	second, err := repo.Upsert(context.Background(), db, "demo", "demo", "example.com")
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("upsert not idempotent: %d vs %d", first.ID, second.ID)
	}
}

func TestPageUpsertIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	rows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "website_id", "path", "page_name"}).
			AddRow(11, 3, "/checkout", "/checkout")
	}

	mock.ExpectQuery("INSERT INTO pages").
		WithArgs(int64(3), "/checkout", "/checkout").
		WillReturnRows(rows())
	mock.ExpectQuery("INSERT INTO pages").
		WithArgs(int64(3), "/checkout", "/checkout").
		WillReturnRows(rows())

	repo := PageRepo{}
	first, err := repo.Upsert(context.Background(), db, 3, "/checkout", "/checkout")
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	second, err := repo.Upsert(context.Background(), db, 3, "/checkout", "/checkout")
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("upsert not idempotent: %d vs %d", first.ID, second.ID)
	}
}

func TestMetricInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	lcp := 1200.0
	session := "s1"
	mock.ExpectExec("INSERT INTO metrics").
		WithArgs(int64(3), int64(11), 1700000000000.0,
			nil, nil, &lcp, nil, nil,
			nil, nil, nil, &session, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	m := &MetricRecord{
		WebsiteID:   3,
		PageID:      11,
		TimestampMs: 1700000000000,
		LCP:         &lcp,
		SessionID:   &session,
	}
	if err := (MetricRepo{}).Insert(context.Background(), db, m); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestErrorInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	stack := "Error: boom\n  at main.js:1"
	mock.ExpectExec("INSERT INTO js_errors").
		WithArgs(int64(3), int64(11), 1700000000000.0,
			"boom", &stack, nil, nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	e := &ErrorRecord{
		WebsiteID:    3,
		PageID:       11,
		TimestampMs:  1700000000000,
		ErrorMessage: "boom",
		StackTrace:   &stack,
	}
	if err := (ErrorRepo{}).Insert(context.Background(), db, e); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
