package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"recordwatch/internal/domain"
	"recordwatch/internal/ports"
)

// CandidateRepository persists accepted candidates into Postgres.
type CandidateRepository struct {
	db *sql.DB
}

var _ ports.CandidateStore = (*CandidateRepository)(nil)

// NewCandidateRepository wires a sql.DB implementation.
func NewCandidateRepository(db *sql.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

// FindByURL returns the id of the candidate already stored under the URL.
func (r *CandidateRepository) FindByURL(ctx context.Context, externalURL string) (string, bool, error) {
	query, args, err := psql.Select("id").
		From("candidates").
		Where("external_url = ?", externalURL).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build query: %w", err)
	}

	var id string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query candidate by url: %w", err)
	}
	return id, true, nil
}

// RecentHeadlines loads the fuzzy-match window.
func (r *CandidateRepository) RecentHeadlines(ctx context.Context, since time.Time) ([]ports.HeadlineRecord, error) {
	query, args, err := psql.Select("id", "headline", "created_at").
		From("candidates").
		Where("created_at >= ?", since).
		Where("headline <> ''").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent headlines: %w", err)
	}
	defer rows.Close()

	var records []ports.HeadlineRecord
	for rows.Next() {
		var rec ports.HeadlineRecord
		if err := rows.Scan(&rec.ID, &rec.Headline, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan headline: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return records, nil
}

// Save inserts the candidate together with its classification, if attached.
func (r *CandidateRepository) Save(ctx context.Context, item domain.CandidateItem) error {
	builder := psql.Insert("candidates").
		Columns("id", "source_id", "external_url", "headline", "summary", "body",
			"published_at", "created_at",
			"category", "severity", "virality", "confidence", "method", "matched_target", "rationale")

	var category, confidence, method, matchedTarget, rationale any
	var severity, virality any
	if cls := item.Classification; cls != nil {
		category = string(cls.Category)
		severity = cls.Severity
		virality = cls.Virality
		confidence = string(cls.Confidence)
		method = string(cls.Method)
		matchedTarget = cls.MatchedTarget
		rationale = cls.Rationale
	}

	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query, args, err := builder.Values(
		item.ID, item.SourceID, item.ExternalURL, item.Headline, item.Summary, item.Body,
		item.PublishedAt, createdAt,
		category, severity, virality, confidence, method, matchedTarget, rationale,
	).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert candidate %s: %w", item.ID, err)
	}
	return nil
}
