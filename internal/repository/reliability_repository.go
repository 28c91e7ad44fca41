package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openmiles/awardengine/internal/model"
)

// ReliabilityRepository reads the per-carrier reliability table.
// It implements reliability.Source.
type ReliabilityRepository struct {
	pool *pgxpool.Pool
}

// NewReliabilityRepository creates a repository backed by the given PG pool.
func NewReliabilityRepository(pool *pgxpool.Pool) *ReliabilityRepository {
	return &ReliabilityRepository{pool: pool}
}

// FetchRules loads every reliability rule keyed by carrier prefix.
func (r *ReliabilityRepository) FetchRules(ctx context.Context) (model.ReliabilityTable, error) {
	query := `
		SELECT carrier, min_count, exempted_cabins, ff_programs
		FROM reliability_rule
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetch reliability rules: %w", err)
	}
	defer rows.Close()

	table := model.ReliabilityTable{}
	for rows.Next() {
		var rule model.ReliabilityRule
		if err := rows.Scan(&rule.Carrier, &rule.MinCount, &rule.ExemptedCabins, &rule.FFPrograms); err != nil {
			return nil, fmt.Errorf("scan reliability rule: %w", err)
		}
		table[rule.Carrier] = rule
	}

	return table, rows.Err()
}
