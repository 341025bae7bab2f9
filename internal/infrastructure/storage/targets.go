package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"recordwatch/internal/domain"
	"recordwatch/internal/ports"
)

// TargetRepository exposes the read-only agency registry.
type TargetRepository struct {
	db *sql.DB
}

var _ ports.TargetDirectory = (*TargetRepository)(nil)

// NewTargetRepository wires a sql.DB implementation.
func NewTargetRepository(db *sql.DB) *TargetRepository {
	return &TargetRepository{db: db}
}

var targetColumns = []string{"id", "name", "jurisdiction", "active", "contact_email",
	"avg_cost_cents", "avg_response_seconds", "patterns"}

// Get loads one target by id.
func (r *TargetRepository) Get(ctx context.Context, id string) (domain.Target, error) {
	query, args, err := psql.Select(targetColumns...).
		From("targets").
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return domain.Target{}, fmt.Errorf("build query: %w", err)
	}

	target, err := scanTarget(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Target{}, fmt.Errorf("target %s not found", id)
	}
	if err != nil {
		return domain.Target{}, fmt.Errorf("query target %s: %w", id, err)
	}
	return target, nil
}

// All loads the full registry, used to snapshot targets per batch.
func (r *TargetRepository) All(ctx context.Context) ([]domain.Target, error) {
	query, args, err := psql.Select(targetColumns...).
		From("targets").
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query targets: %w", err)
	}
	defer rows.Close()

	var targets []domain.Target
	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		targets = append(targets, target)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return targets, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTarget(row rowScanner) (domain.Target, error) {
	var target domain.Target
	var responseSeconds int64
	err := row.Scan(&target.ID, &target.Name, &target.Jurisdiction, &target.Active,
		&target.ContactEmail, &target.AvgCostCents, &responseSeconds,
		pq.Array(&target.Patterns))
	if err != nil {
		return domain.Target{}, err
	}
	target.AvgResponseInterval = time.Duration(responseSeconds) * time.Second
	return target, nil
}
