package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"recordwatch/internal/domain"
	"recordwatch/internal/ports"
)

// Manager owns every request status mutation. A transition is validated
// against the closed graph and persisted together with its audit row in one
// transaction; state and audit never diverge.
type Manager struct {
	requests ports.RequestStore
	targets  ports.TargetDirectory
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager wires the request store and target directory.
func NewManager(requests ports.RequestStore, targets ports.TargetDirectory, logger *slog.Logger) *Manager {
	return &Manager{
		requests: requests,
		targets:  targets,
		logger:   logger,
		now:      time.Now,
	}
}

// Transition moves the request to the given status. Illegal moves fail with
// InvalidTransitionError before anything is written. due_at is computed
// exactly once, when the request reaches SUBMITTED.
func (m *Manager) Transition(ctx context.Context, requestID string, to domain.RequestStatus, changedBy, reason string, metadata map[string]string) (domain.Request, error) {
	req, err := m.requests.Get(ctx, requestID)
	if err != nil {
		return domain.Request{}, fmt.Errorf("load request %s: %w", requestID, err)
	}

	from := req.Status
	if !domain.CanTransition(from, to) {
		return domain.Request{}, &domain.InvalidTransitionError{RequestID: requestID, From: from, To: to}
	}

	now := m.now()
	req.Status = to

	switch to {
	case domain.StatusSubmitted:
		if req.SubmittedAt == nil {
			submitted := now
			req.SubmittedAt = &submitted
			due := submitted.Add(m.responseInterval(ctx, req.TargetID))
			req.DueAt = &due
		}
	case domain.StatusFulfilled:
		if req.FulfilledAt == nil {
			fulfilled := now
			req.FulfilledAt = &fulfilled
		}
	}

	change := domain.RequestStatusChange{
		ID:         uuid.NewString(),
		RequestID:  requestID,
		FromStatus: from,
		ToStatus:   to,
		ChangedBy:  changedBy,
		Reason:     reason,
		Metadata:   metadata,
		CreatedAt:  now,
	}

	if err := m.requests.Transition(ctx, req, change); err != nil {
		return domain.Request{}, fmt.Errorf("persist transition %s -> %s: %w", from, to, err)
	}

	if m.logger != nil {
		m.logger.Info("request transitioned",
			"request", requestID, "from", from, "to", to, "by", changedBy)
	}
	return req, nil
}

func (m *Manager) responseInterval(ctx context.Context, targetID string) time.Duration {
	if m.targets != nil {
		if target, err := m.targets.Get(ctx, targetID); err == nil {
			return target.ResponseInterval()
		}
	}
	return domain.DefaultResponseInterval
}
