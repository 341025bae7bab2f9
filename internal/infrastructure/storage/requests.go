package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"recordwatch/internal/domain"
	"recordwatch/internal/ports"
)

// RequestRepository persists requests and their append-only audit trail.
type RequestRepository struct {
	db *sql.DB
}

var _ ports.RequestStore = (*RequestRepository)(nil)

// NewRequestRepository wires a sql.DB implementation.
func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new request, allocating its sequential reference number
// from the database sequence inside the same transaction.
func (r *RequestRepository) Create(ctx context.Context, req *domain.Request) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT nextval('request_reference_seq')`).Scan(&seq); err != nil {
		return fmt.Errorf("allocate reference number: %w", err)
	}

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	req.CreatedAt = createdAt
	req.ReferenceNumber = fmt.Sprintf("PRR-%d-%06d", createdAt.Year(), seq)

	query, args, err := psql.Insert("requests").
		Columns("id", "target_id", "candidate_id", "reference_number", "status", "priority",
			"subject", "body", "auto_filed", "estimated_cents", "actual_cents", "created_at").
		Values(req.ID, req.TargetID, req.CandidateID, req.ReferenceNumber, string(req.Status), req.Priority,
			req.Subject, req.Body, req.AutoFiled, req.EstimatedCents, req.ActualCents, req.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert request %s: %w", req.ID, err)
	}

	return tx.Commit()
}

// Get loads one request by id.
func (r *RequestRepository) Get(ctx context.Context, id string) (domain.Request, error) {
	query, args, err := psql.Select("id", "target_id", "candidate_id", "reference_number", "status",
		"priority", "subject", "body", "auto_filed", "estimated_cents", "actual_cents",
		"created_at", "submitted_at", "due_at", "fulfilled_at").
		From("requests").
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return domain.Request{}, fmt.Errorf("build query: %w", err)
	}

	var req domain.Request
	var status string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&req.ID, &req.TargetID, &req.CandidateID, &req.ReferenceNumber, &status,
		&req.Priority, &req.Subject, &req.Body, &req.AutoFiled, &req.EstimatedCents, &req.ActualCents,
		&req.CreatedAt, &req.SubmittedAt, &req.DueAt, &req.FulfilledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Request{}, fmt.Errorf("request %s not found", id)
	}
	if err != nil {
		return domain.Request{}, fmt.Errorf("query request %s: %w", id, err)
	}
	req.Status = domain.RequestStatus(status)
	return req, nil
}

// Transition applies the status mutation and inserts the audit row in one
// transaction; a partial failure rolls back both.
func (r *RequestRepository) Transition(ctx context.Context, req domain.Request, change domain.RequestStatusChange) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	updateQuery, updateArgs, err := psql.Update("requests").
		Set("status", string(req.Status)).
		Set("submitted_at", req.SubmittedAt).
		Set("due_at", req.DueAt).
		Set("fulfilled_at", req.FulfilledAt).
		Where("id = ?", req.ID).
		Where("status = ?", string(change.FromStatus)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := tx.ExecContext(ctx, updateQuery, updateArgs...)
	if err != nil {
		return fmt.Errorf("update request %s: %w", req.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Lost a race: the row no longer carries the expected status.
		return &domain.InvalidTransitionError{RequestID: req.ID, From: change.FromStatus, To: change.ToStatus}
	}

	var metadata []byte
	if len(change.Metadata) > 0 {
		metadata, err = json.Marshal(change.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}

	insertQuery, insertArgs, err := psql.Insert("request_status_changes").
		Columns("id", "request_id", "from_status", "to_status", "changed_by", "reason", "metadata", "created_at").
		Values(change.ID, change.RequestID, string(change.FromStatus), string(change.ToStatus),
			change.ChangedBy, change.Reason, metadata, change.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
		return fmt.Errorf("insert status change: %w", err)
	}

	return tx.Commit()
}
