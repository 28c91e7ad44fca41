package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MetricsRepository records cumulative fan-out statistics per route key.
// Writes are opportunistic: the orchestrator calls RecordSearch after
// responding and tolerates failures.
type MetricsRepository struct {
	pool *pgxpool.Pool
}

// NewMetricsRepository creates a repository backed by the given PG pool.
func NewMetricsRepository(pool *pgxpool.Pool) *MetricsRepository {
	return &MetricsRepository{pool: pool}
}

// RecordSearch bumps the cumulative and same-day counters for a route
// key. The derived average lives in the table as a generated view; only
// count and day_count are written here.
func (r *MetricsRepository) RecordSearch(ctx context.Context, routeKey string, upstreamRequests int) error {
	query := `
		INSERT INTO route_metrics (route_key, count, day_count, day)
		VALUES ($1, $2, $2, CURRENT_DATE)
		ON CONFLICT (route_key) DO UPDATE
		SET count     = route_metrics.count + EXCLUDED.count,
		    day_count = CASE WHEN route_metrics.day = CURRENT_DATE
		                     THEN route_metrics.day_count + EXCLUDED.day_count
		                     ELSE EXCLUDED.day_count END,
		    day       = CURRENT_DATE
	`

	if _, err := r.pool.Exec(ctx, query, routeKey, upstreamRequests); err != nil {
		return fmt.Errorf("record route metrics %s: %w", routeKey, err)
	}
	return nil
}
