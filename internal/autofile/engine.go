package autofile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"recordwatch/internal/domain"
	"recordwatch/internal/ports"
)

// Engine is the policy gate between classified candidates and filed
// requests. Gates run in order and the first failing check short-circuits;
// every evaluation, including skips, appends exactly one immutable decision
// to the audit log.
type Engine struct {
	decisions ports.DecisionLog
	requests  ports.RequestStore
	targets   ports.TargetDirectory
	costs     ports.CostPredictor
	logger    *slog.Logger
	now       func() time.Time
}

// NewEngine wires the audit log, request store, target directory, and cost
// predictor.
func NewEngine(decisions ports.DecisionLog, requests ports.RequestStore, targets ports.TargetDirectory, costs ports.CostPredictor, logger *slog.Logger) *Engine {
	return &Engine{
		decisions: decisions,
		requests:  requests,
		targets:   targets,
		costs:     costs,
		logger:    logger,
		now:       time.Now,
	}
}

// Evaluate runs the ordered gates for one classified candidate under the
// immutable policy snapshot. In live mode a passing candidate produces a
// DRAFT request; in dry-run mode the decision is recorded with no side
// effects.
func (e *Engine) Evaluate(ctx context.Context, item domain.CandidateItem, policy domain.AutoFilePolicy) (domain.AutoFileDecision, *domain.Request, error) {
	cls := item.Classification
	targetID := ""
	if cls != nil {
		targetID = cls.MatchedTarget
	}

	if policy.Mode == domain.ModeOff {
		return e.record(ctx, item, targetID, domain.DecisionSkipped, domain.ReasonModeOff, "")
	}

	if cls == nil || !cls.Eligible() {
		return e.record(ctx, item, targetID, domain.DecisionSkipped, domain.ReasonLowConfidence, "")
	}

	target, err := e.lookupTarget(ctx, targetID)
	if err != nil || !target.Active || !target.HasContact() {
		return e.record(ctx, item, targetID, domain.DecisionSkipped, domain.ReasonNoTargetContact, "")
	}

	if cls.Severity < policy.EligibilityThreshold {
		return e.record(ctx, item, target.ID, domain.DecisionSkipped, domain.ReasonBelowThreshold, "")
	}

	now := e.now().UTC()
	startOfDay := now.Truncate(24 * time.Hour)
	filedToday, err := e.decisions.CountFiledSince(ctx, startOfDay)
	if err != nil {
		return domain.AutoFileDecision{}, nil, fmt.Errorf("count filed today: %w", err)
	}
	if filedToday >= policy.DailyQuota {
		return e.record(ctx, item, target.ID, domain.DecisionSkipped, domain.ReasonDailyQuota, "")
	}

	filedForTarget, err := e.decisions.CountFiledForTarget(ctx, target.ID, now.Add(-policy.TargetCooldown))
	if err != nil {
		return domain.AutoFileDecision{}, nil, fmt.Errorf("count filed for target %s: %w", target.ID, err)
	}
	if filedForTarget >= policy.TargetCooldownCap {
		return e.record(ctx, item, target.ID, domain.DecisionSkipped, domain.ReasonTargetCooldown, "")
	}

	estimate := e.estimate(ctx, target, cls.Category)
	if estimate > policy.CostCapCents {
		return e.record(ctx, item, target.ID, domain.DecisionSkipped, domain.ReasonCostCap, "")
	}

	if policy.Mode == domain.ModeDryRun {
		return e.record(ctx, item, target.ID, domain.DecisionDryRun, domain.ReasonDryRun, "")
	}

	req := draftRequest(item, target, estimate, e.now())
	if err := e.requests.Create(ctx, &req); err != nil {
		return domain.AutoFileDecision{}, nil, fmt.Errorf("create draft request: %w", err)
	}

	decision, _, err := e.record(ctx, item, target.ID, domain.DecisionFiled, domain.ReasonFiled, req.ID)
	if err != nil {
		return decision, nil, err
	}
	if e.logger != nil {
		e.logger.Info("auto-filed draft request",
			"candidate", item.ID, "target", target.ID, "request", req.ID, "reference", req.ReferenceNumber)
	}
	return decision, &req, nil
}

func (e *Engine) lookupTarget(ctx context.Context, targetID string) (domain.Target, error) {
	if targetID == "" {
		return domain.Target{}, fmt.Errorf("no target matched")
	}
	return e.targets.Get(ctx, targetID)
}

// estimate asks the cost predictor, falling back to the target's historical
// average when the collaborator is absent or failing.
func (e *Engine) estimate(ctx context.Context, target domain.Target, category domain.Category) int {
	if e.costs != nil {
		if est, err := e.costs.Predict(ctx, target.ID, category); err == nil {
			return est.EstimatedCents
		}
	}
	return target.AvgCostCents
}

func (e *Engine) record(ctx context.Context, item domain.CandidateItem, targetID string, outcome domain.DecisionOutcome, reason, requestID string) (domain.AutoFileDecision, *domain.Request, error) {
	decision := domain.AutoFileDecision{
		ID:          uuid.NewString(),
		CandidateID: item.ID,
		TargetID:    targetID,
		Outcome:     outcome,
		Reason:      reason,
		RequestID:   requestID,
		EvaluatedAt: e.now(),
	}
	if err := e.decisions.Append(ctx, decision); err != nil {
		return domain.AutoFileDecision{}, nil, fmt.Errorf("append decision: %w", err)
	}
	return decision, nil, nil
}

// draftRequest builds the DRAFT records request for a filed candidate.
func draftRequest(item domain.CandidateItem, target domain.Target, estimatedCents int, now time.Time) domain.Request {
	cls := item.Classification
	subject := fmt.Sprintf("Public records request: %s coverage dated %s",
		cls.Category, item.PublishedAt.Format("2006-01-02"))
	body := fmt.Sprintf(
		"To the records custodian of %s:\n\n"+
			"Pursuant to applicable public records law, we request all records "+
			"relating to the incident described in %q (%s), including reports, "+
			"body-worn camera footage, dispatch logs, and related communications.\n",
		target.Name, item.Headline, item.ExternalURL)

	return domain.Request{
		ID:             uuid.NewString(),
		TargetID:       target.ID,
		CandidateID:    item.ID,
		Status:         domain.StatusDraft,
		Priority:       cls.Severity,
		Subject:        subject,
		Body:           body,
		AutoFiled:      true,
		EstimatedCents: estimatedCents,
		CreatedAt:      now,
	}
}
