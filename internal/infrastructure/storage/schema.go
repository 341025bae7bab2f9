package storage

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS candidates (
		id             TEXT PRIMARY KEY,
		source_id      TEXT NOT NULL,
		external_url   TEXT NOT NULL UNIQUE,
		headline       TEXT NOT NULL DEFAULT '',
		summary        TEXT NOT NULL DEFAULT '',
		body           TEXT NOT NULL DEFAULT '',
		published_at   TIMESTAMPTZ,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		category       TEXT,
		severity       INTEGER,
		virality       INTEGER,
		confidence     TEXT,
		method         TEXT,
		matched_target TEXT,
		rationale      TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_candidates_created_at ON candidates (created_at)`,
	`CREATE TABLE IF NOT EXISTS targets (
		id                    TEXT PRIMARY KEY,
		name                  TEXT NOT NULL,
		jurisdiction          TEXT NOT NULL DEFAULT '',
		active                BOOLEAN NOT NULL DEFAULT TRUE,
		contact_email         TEXT NOT NULL DEFAULT '',
		avg_cost_cents        INTEGER NOT NULL DEFAULT 0,
		avg_response_seconds  BIGINT NOT NULL DEFAULT 0,
		patterns              TEXT[] NOT NULL DEFAULT '{}'
	)`,
	`CREATE SEQUENCE IF NOT EXISTS request_reference_seq`,
	`CREATE TABLE IF NOT EXISTS requests (
		id               TEXT PRIMARY KEY,
		target_id        TEXT NOT NULL,
		candidate_id     TEXT NOT NULL DEFAULT '',
		reference_number TEXT NOT NULL UNIQUE,
		status           TEXT NOT NULL,
		priority         INTEGER NOT NULL DEFAULT 0,
		subject          TEXT NOT NULL DEFAULT '',
		body             TEXT NOT NULL DEFAULT '',
		auto_filed       BOOLEAN NOT NULL DEFAULT FALSE,
		estimated_cents  INTEGER NOT NULL DEFAULT 0,
		actual_cents     INTEGER NOT NULL DEFAULT 0,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		submitted_at     TIMESTAMPTZ,
		due_at           TIMESTAMPTZ,
		fulfilled_at     TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS request_status_changes (
		id          TEXT PRIMARY KEY,
		request_id  TEXT NOT NULL REFERENCES requests (id),
		from_status TEXT NOT NULL,
		to_status   TEXT NOT NULL,
		changed_by  TEXT NOT NULL DEFAULT '',
		reason      TEXT NOT NULL DEFAULT '',
		metadata    JSONB,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_status_changes_request ON request_status_changes (request_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS autofile_decisions (
		id           TEXT PRIMARY KEY,
		candidate_id TEXT NOT NULL,
		target_id    TEXT NOT NULL DEFAULT '',
		outcome      TEXT NOT NULL,
		reason       TEXT NOT NULL,
		request_id   TEXT NOT NULL DEFAULT '',
		evaluated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_decisions_outcome_time ON autofile_decisions (outcome, evaluated_at)`,
	`CREATE TABLE IF NOT EXISTS source_health (
		source_id            TEXT PRIMARY KEY,
		enabled              BOOLEAN NOT NULL DEFAULT TRUE,
		circuit_open         BOOLEAN NOT NULL DEFAULT FALSE,
		consecutive_failures INTEGER NOT NULL DEFAULT 0,
		total_failures       INTEGER NOT NULL DEFAULT 0,
		total_successes      INTEGER NOT NULL DEFAULT 0,
		last_success_at      TIMESTAMPTZ,
		last_failure_at      TIMESTAMPTZ,
		circuit_opened_at    TIMESTAMPTZ,
		retry_after          TIMESTAMPTZ,
		probe_started_at     TIMESTAMPTZ,
		last_error           TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS artifacts (
		key        TEXT PRIMARY KEY,
		data       BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS submission_locks (
		key        TEXT PRIMARY KEY,
		token      TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate applies the schema idempotently.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
