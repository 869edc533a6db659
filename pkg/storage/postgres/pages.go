package postgres

import (
	"context"
	"fmt"
)

// Page is one URL path within a website, unique on (website_id, path).
type Page struct {
	ID        int64
	WebsiteID int64
	Path      string
	PageName  string
}

// PageRepo persists pages. Identity is derived purely from the URL path
// component; page_name is updated in place on every upsert.
type PageRepo struct{}

// Upsert creates or updates a page and returns its row.
func (PageRepo) Upsert(ctx context.Context, q Querier, websiteID int64, path, pageName string) (*Page, error) {
	p := &Page{}
	err := q.QueryRowContext(ctx,
		`INSERT INTO pages (website_id, path, page_name)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (website_id, path) DO UPDATE SET page_name = EXCLUDED.page_name
		 RETURNING id, website_id, path, page_name`,
		websiteID, path, pageName,
	).Scan(&p.ID, &p.WebsiteID, &p.Path, &p.PageName)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert page: %w", err)
	}
	return p, nil
}
