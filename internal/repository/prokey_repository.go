// Package repository provides database access for the award engine's
// three persisted tables: pro_key (provider credentials),
// reliability_rule (per-carrier reliability table) and route_metrics
// (opportunistic fan-out statistics).
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openmiles/awardengine/internal/model"
)

// ProKeyRepository rotates provider credentials stored in pro_key.
type ProKeyRepository struct {
	pool *pgxpool.Pool
}

// NewProKeyRepository creates a repository backed by the given PG pool.
func NewProKeyRepository(pool *pgxpool.Pool) *ProKeyRepository {
	return &ProKeyRepository{pool: pool}
}

// Acquire picks the credential with the most remaining quota.
// Returns model.ErrCredentialExhausted when the table is empty or every
// key is spent.
func (r *ProKeyRepository) Acquire(ctx context.Context) (*model.ProKey, error) {
	query := `
		SELECT pro_key, remaining, last_updated
		FROM pro_key
		WHERE remaining > 0
		ORDER BY remaining DESC
		LIMIT 1
	`

	pk := &model.ProKey{}
	err := r.pool.QueryRow(ctx, query).Scan(&pk.Key, &pk.Remaining, &pk.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrCredentialExhausted
	}
	if err != nil {
		return nil, fmt.Errorf("acquire pro key: %w", err)
	}
	return pk, nil
}

// UpdateRemaining writes the post-request quota with a compare-and-set:
// the update only lands if remaining still holds the value read at
// acquire time. A lost race returns applied=false and no error — the
// winner's value is at least as fresh as ours.
func (r *ProKeyRepository) UpdateRemaining(ctx context.Context, key string, oldRemaining, newRemaining int) (applied bool, err error) {
	query := `
		UPDATE pro_key
		SET remaining = $3, last_updated = NOW()
		WHERE pro_key = $1 AND remaining = $2
	`

	tag, err := r.pool.Exec(ctx, query, key, oldRemaining, newRemaining)
	if err != nil {
		return false, fmt.Errorf("update pro key %s: %w", key, err)
	}
	return tag.RowsAffected() == 1, nil
}
