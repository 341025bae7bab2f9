package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"recordwatch/internal/ports"
)

// ArtifactRepository keeps rendered submission artifacts in Postgres.
type ArtifactRepository struct {
	db *sql.DB
}

var _ ports.ArtifactStore = (*ArtifactRepository)(nil)

// NewArtifactRepository wires a sql.DB implementation.
func NewArtifactRepository(db *sql.DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// Put stores the artifact bytes under the key, overwriting any prior copy.
func (r *ArtifactRepository) Put(ctx context.Context, key string, data []byte) error {
	query := `INSERT INTO artifacts (key, data, created_at)
              VALUES ($1, $2, $3)
              ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data`

	if _, err := r.db.ExecContext(ctx, query, key, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("put artifact %s: %w", key, err)
	}
	return nil
}

// Get loads the artifact bytes for the key.
func (r *ArtifactRepository) Get(ctx context.Context, key string) ([]byte, error) {
	query, args, err := psql.Select("data").
		From("artifacts").
		Where("key = ?", key).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var data []byte
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artifact %s not found", key)
	}
	if err != nil {
		return nil, fmt.Errorf("query artifact %s: %w", key, err)
	}
	return data, nil
}
