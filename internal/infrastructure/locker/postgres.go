package locker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"recordwatch/internal/domain"
	"recordwatch/internal/ports"
)

// PostgresLocker implements mutual exclusion with a lease row per key. A
// lease is stealable only once its TTL has expired.
type PostgresLocker struct {
	db *sql.DB
}

var _ ports.Locker = (*PostgresLocker)(nil)

// NewPostgresLocker wires a sql.DB implementation.
func NewPostgresLocker(db *sql.DB) *PostgresLocker {
	return &PostgresLocker{db: db}
}

// Acquire claims the key for ttl. A live lease held by someone else yields
// LockContentionError.
func (l *PostgresLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	now := time.Now().UTC()

	query := `INSERT INTO submission_locks (key, token, expires_at)
              VALUES ($1, $2, $3)
              ON CONFLICT (key) DO UPDATE
              SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at
              WHERE submission_locks.expires_at < $4`

	result, err := l.db.ExecContext(ctx, query, key, token, now.Add(ttl), now)
	if err != nil {
		return "", fmt.Errorf("acquire lock %s: %w", key, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return "", &domain.LockContentionError{Key: key}
	}
	return token, nil
}

// Release drops the lease if the caller still holds it. Releasing a lease
// stolen after expiry is a no-op.
func (l *PostgresLocker) Release(ctx context.Context, key, token string) error {
	query := `DELETE FROM submission_locks WHERE key = $1 AND token = $2`
	if _, err := l.db.ExecContext(ctx, query, key, token); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}
