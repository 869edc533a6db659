package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Website is one monitored site, keyed by its project key.
type Website struct {
	ID         int64
	ProjectKey string
	Name       string
	Domain     string
}

// WebsiteRepo persists websites. Rows converge via upsert on the unique
// project key and are never deleted by the pipeline.
type WebsiteRepo struct{}

// IDByProjectKey looks up a website ID. Returns (0, nil) when the
// project key is unknown.
func (WebsiteRepo) IDByProjectKey(ctx context.Context, q Querier, projectKey string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM websites WHERE project_key = $1`,
		projectKey,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up website: %w", err)
	}
	return id, nil
}

// Upsert creates or updates a website. Concurrent first-seen inserts
// race safely: ON CONFLICT guarantees a single row per project key, and
// the later writer's domain wins.
func (WebsiteRepo) Upsert(ctx context.Context, q Querier, projectKey, name, domain string) (*Website, error) {
	w := &Website{}
	err := q.QueryRowContext(ctx,
		`INSERT INTO websites (project_key, name, domain)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (project_key) DO UPDATE SET domain = EXCLUDED.domain
		 RETURNING id, project_key, name, domain`,
		projectKey, name, domain,
	).Scan(&w.ID, &w.ProjectKey, &w.Name, &w.Domain)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert website: %w", err)
	}
	return w, nil
}
