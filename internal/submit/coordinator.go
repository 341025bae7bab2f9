package submit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"recordwatch/internal/domain"
	"recordwatch/internal/lifecycle"
	"recordwatch/internal/ports"
)

// LockTTL bounds worst-case lock staleness; it is materially longer than a
// submission ever takes. The DRAFT/READY re-check under the lock is the real
// safety net if a holder crashes and the lock expires early.
const LockTTL = 120 * time.Second

// Coordinator performs the non-idempotent submission side effect at most
// once per request across concurrent callers.
type Coordinator struct {
	requests  ports.RequestStore
	targets   ports.TargetDirectory
	lifecycle *lifecycle.Manager
	locker    ports.Locker
	deliverer ports.Deliverer
	artifacts ports.ArtifactStore
	publisher ports.Publisher
	logger    *slog.Logger
}

// NewCoordinator wires the submission collaborators.
func NewCoordinator(requests ports.RequestStore, targets ports.TargetDirectory, lc *lifecycle.Manager, locker ports.Locker, deliverer ports.Deliverer, artifacts ports.ArtifactStore, publisher ports.Publisher, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		requests:  requests,
		targets:   targets,
		lifecycle: lc,
		locker:    locker,
		deliverer: deliverer,
		artifacts: artifacts,
		publisher: publisher,
		logger:    logger,
	}
}

// Submit carries the request through delivery, artifact persistence, and the
// SUBMITTED transition. Contention surfaces as LockContentionError and is
// never auto-retried. Failures before delivery leave the request in DRAFT,
// so a later retry stays safe; persistence failure after delivery escalates
// to FatalConsistencyError and alerts the operator.
func (c *Coordinator) Submit(ctx context.Context, requestID, actor string) (domain.Request, error) {
	lockKey := "submit:" + requestID
	token, err := c.locker.Acquire(ctx, lockKey, LockTTL)
	if err != nil {
		return domain.Request{}, err
	}
	defer func() {
		if relErr := c.locker.Release(ctx, lockKey, token); relErr != nil && c.logger != nil {
			c.logger.Warn("release submission lock failed", "request", requestID, "error", relErr)
		}
	}()

	req, err := c.requests.Get(ctx, requestID)
	if err != nil {
		return domain.Request{}, fmt.Errorf("load request %s: %w", requestID, err)
	}
	if req.Status != domain.StatusDraft && req.Status != domain.StatusReady {
		return domain.Request{}, &domain.InvalidTransitionError{RequestID: requestID, From: req.Status, To: domain.StatusSubmitted}
	}

	target, err := c.targets.Get(ctx, req.TargetID)
	if err != nil {
		return domain.Request{}, fmt.Errorf("load target %s: %w", req.TargetID, err)
	}
	if !target.HasContact() {
		return domain.Request{}, domain.Permanent("submit", fmt.Errorf("target %s has no contact channel", target.ID))
	}

	artifact := RenderArtifact(req, target)

	// Delivery is the point of no return. Fail closed before it.
	if err := c.deliverer.Deliver(ctx, target.ContactEmail, req.Subject, req.Body, artifact); err != nil {
		return domain.Request{}, fmt.Errorf("deliver request %s: %w", requestID, err)
	}

	if err := c.artifacts.Put(ctx, ArtifactKey(requestID), artifact); err != nil {
		fatal := &domain.FatalConsistencyError{RequestID: requestID, Err: err}
		c.alert(ctx, fatal)
		return domain.Request{}, fatal
	}

	updated, err := c.lifecycle.Transition(ctx, requestID, domain.StatusSubmitted, actor, "submission_delivered", map[string]string{
		"recipient": target.ContactEmail,
		"artifact":  ArtifactKey(requestID),
	})
	if err != nil {
		fatal := &domain.FatalConsistencyError{RequestID: requestID, Err: err}
		c.alert(ctx, fatal)
		return domain.Request{}, fatal
	}

	c.publish(ctx, "request_submitted", map[string]string{
		"request_id": requestID,
		"reference":  updated.ReferenceNumber,
		"target_id":  target.ID,
	})
	if c.logger != nil {
		c.logger.Info("request submitted",
			"request", requestID, "reference", updated.ReferenceNumber, "target", target.ID)
	}
	return updated, nil
}

func (c *Coordinator) alert(ctx context.Context, fatal *domain.FatalConsistencyError) {
	if c.logger != nil {
		c.logger.Error("fatal consistency failure, operator attention required",
			"request", fatal.RequestID, "error", fatal.Err)
	}
	c.publish(ctx, "fatal_consistency", map[string]string{
		"request_id": fatal.RequestID,
		"error":      fatal.Err.Error(),
	})
}

func (c *Coordinator) publish(ctx context.Context, eventType string, payload map[string]string) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, eventType, payload); err != nil && c.logger != nil {
		c.logger.Warn("event publish failed", "event", eventType, "error", err)
	}
}

// ArtifactKey names the durable copy of a request's submission.
func ArtifactKey(requestID string) string {
	return "requests/" + requestID + "/submission.txt"
}

// RenderArtifact is a pure function of the request content; rendering twice
// for the same request yields identical bytes.
func RenderArtifact(req domain.Request, target domain.Target) []byte {
	return fmt.Appendf(nil,
		"Reference: %s\nTarget: %s <%s>\nSubject: %s\n\n%s",
		req.ReferenceNumber, target.Name, target.ContactEmail, req.Subject, req.Body)
}
