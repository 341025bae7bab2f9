package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"recordwatch/internal/domain"
	"recordwatch/internal/ports"
)

// DecisionRepository is the append-only auto-file audit log. Counts are
// always derived from the rows themselves.
type DecisionRepository struct {
	db *sql.DB
}

var _ ports.DecisionLog = (*DecisionRepository)(nil)

// NewDecisionRepository wires a sql.DB implementation.
func NewDecisionRepository(db *sql.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// Append inserts one immutable decision row.
func (r *DecisionRepository) Append(ctx context.Context, decision domain.AutoFileDecision) error {
	query, args, err := psql.Insert("autofile_decisions").
		Columns("id", "candidate_id", "target_id", "outcome", "reason", "request_id", "evaluated_at").
		Values(decision.ID, decision.CandidateID, decision.TargetID,
			string(decision.Outcome), decision.Reason, decision.RequestID, decision.EvaluatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert decision %s: %w", decision.ID, err)
	}
	return nil
}

// CountFiledSince counts filed decisions at or after the cutoff.
func (r *DecisionRepository) CountFiledSince(ctx context.Context, since time.Time) (int, error) {
	return r.countFiled(ctx, since, "")
}

// CountFiledForTarget counts filed decisions for one target inside the
// cooldown window.
func (r *DecisionRepository) CountFiledForTarget(ctx context.Context, targetID string, since time.Time) (int, error) {
	return r.countFiled(ctx, since, targetID)
}

func (r *DecisionRepository) countFiled(ctx context.Context, since time.Time, targetID string) (int, error) {
	builder := psql.Select("COUNT(*)").
		From("autofile_decisions").
		Where("outcome = ?", string(domain.DecisionFiled)).
		Where("evaluated_at >= ?", since)
	if targetID != "" {
		builder = builder.Where("target_id = ?", targetID)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count filed decisions: %w", err)
	}
	return count, nil
}
