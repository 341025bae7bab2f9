package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"recordwatch/internal/domain"
	"recordwatch/internal/ports"
)

// HealthRepository persists per-source circuit-breaker records.
type HealthRepository struct {
	db *sql.DB
}

var _ ports.HealthStore = (*HealthRepository)(nil)

// NewHealthRepository wires a sql.DB implementation.
func NewHealthRepository(db *sql.DB) *HealthRepository {
	return &HealthRepository{db: db}
}

// Get loads the record for the source, or a fresh enabled record if the
// source has never been observed.
func (r *HealthRepository) Get(ctx context.Context, sourceID string) (domain.SourceHealth, error) {
	query, args, err := psql.Select("source_id", "enabled", "circuit_open", "consecutive_failures",
		"total_failures", "total_successes", "last_success_at", "last_failure_at",
		"circuit_opened_at", "retry_after", "probe_started_at", "last_error").
		From("source_health").
		Where("source_id = ?", sourceID).
		ToSql()
	if err != nil {
		return domain.SourceHealth{}, fmt.Errorf("build query: %w", err)
	}

	var h domain.SourceHealth
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&h.SourceID, &h.Enabled, &h.CircuitOpen, &h.ConsecutiveFailures,
		&h.TotalFailures, &h.TotalSuccesses, &h.LastSuccessAt, &h.LastFailureAt,
		&h.CircuitOpenedAt, &h.RetryAfter, &h.ProbeStartedAt, &h.LastError)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SourceHealth{SourceID: sourceID, Enabled: true}, nil
	}
	if err != nil {
		return domain.SourceHealth{}, fmt.Errorf("query source health %s: %w", sourceID, err)
	}
	return h, nil
}

// Upsert writes the full record; last writer wins.
func (r *HealthRepository) Upsert(ctx context.Context, h domain.SourceHealth) error {
	query := `INSERT INTO source_health (source_id, enabled, circuit_open, consecutive_failures,
                total_failures, total_successes, last_success_at, last_failure_at,
                circuit_opened_at, retry_after, probe_started_at, last_error)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
              ON CONFLICT (source_id) DO UPDATE
              SET enabled = EXCLUDED.enabled,
                  circuit_open = EXCLUDED.circuit_open,
                  consecutive_failures = EXCLUDED.consecutive_failures,
                  total_failures = EXCLUDED.total_failures,
                  total_successes = EXCLUDED.total_successes,
                  last_success_at = EXCLUDED.last_success_at,
                  last_failure_at = EXCLUDED.last_failure_at,
                  circuit_opened_at = EXCLUDED.circuit_opened_at,
                  retry_after = EXCLUDED.retry_after,
                  probe_started_at = EXCLUDED.probe_started_at,
                  last_error = EXCLUDED.last_error`

	_, err := r.db.ExecContext(ctx, query,
		h.SourceID, h.Enabled, h.CircuitOpen, h.ConsecutiveFailures,
		h.TotalFailures, h.TotalSuccesses, h.LastSuccessAt, h.LastFailureAt,
		h.CircuitOpenedAt, h.RetryAfter, h.ProbeStartedAt, h.LastError)
	if err != nil {
		return fmt.Errorf("upsert source health %s: %w", h.SourceID, err)
	}
	return nil
}
