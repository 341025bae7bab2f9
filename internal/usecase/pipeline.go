package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"recordwatch/internal/autofile"
	"recordwatch/internal/classify"
	"recordwatch/internal/dedup"
	"recordwatch/internal/domain"
	"recordwatch/internal/health"
	"recordwatch/internal/ports"
	"recordwatch/internal/submit"
)

// PipelineDeps wires all collaborators into the ingestion pipeline.
type PipelineDeps struct {
	SourceIDs   []string
	Feed        ports.SourceFeed
	Health      *health.Tracker
	Filter      *dedup.RelevanceFilter
	Dedup       *dedup.Deduplicator
	Scorer      *classify.Scorer
	Engine      *autofile.Engine
	Coordinator *submit.Coordinator
	Candidates  ports.CandidateStore
	Policy      domain.AutoFilePolicy
	Logger      *slog.Logger
}

// Pipeline implements one ingestion batch: gate each source through the
// circuit breaker, deduplicate and classify its items, and hand eligible
// candidates to the decision engine. Sources run concurrently and fail
// independently; the batch report is returned regardless of individual
// source outcomes.
type Pipeline struct {
	deps PipelineDeps
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{deps: deps}
}

// Run executes one batch. The auto-file policy was snapshotted at
// construction, so every decision within the batch sees the same knobs.
func (p *Pipeline) Run(ctx context.Context, now time.Time) domain.BatchReport {
	var (
		mu     sync.Mutex
		report domain.BatchReport
		wg     sync.WaitGroup
	)

	for _, sourceID := range p.deps.SourceIDs {
		wg.Add(1)
		go func(sourceID string) {
			defer wg.Done()
			partial := p.processSource(ctx, sourceID, now)
			mu.Lock()
			report.Found += partial.Found
			report.New += partial.New
			report.Duplicate += partial.Duplicate
			report.Rejected += partial.Rejected
			report.Errors += partial.Errors
			report.Filed += partial.Filed
			report.DryRun += partial.DryRun
			report.Skipped += partial.Skipped
			mu.Unlock()
		}(sourceID)
	}
	wg.Wait()

	p.log("batch finished",
		"found", report.Found, "new", report.New, "duplicate", report.Duplicate,
		"rejected", report.Rejected, "errors", report.Errors,
		"filed", report.Filed, "dry_run", report.DryRun, "skipped", report.Skipped)
	return report
}

func (p *Pipeline) processSource(ctx context.Context, sourceID string, now time.Time) domain.BatchReport {
	var report domain.BatchReport

	skip, reason, err := p.deps.Health.ShouldSkip(ctx, sourceID)
	if err != nil {
		p.warn("health check failed", "source", sourceID, "error", err)
		report.Errors++
		return report
	}
	if skip {
		p.log("source skipped", "source", sourceID, "reason", reason)
		return report
	}
	if reason == health.ReasonRetryAttempt {
		p.log("probing source after cooldown", "source", sourceID)
	}

	items, err := p.deps.Feed.Fetch(ctx, sourceID)
	if err != nil {
		p.warn("source fetch failed", "source", sourceID, "error", err)
		if hErr := p.deps.Health.RecordFailure(ctx, sourceID, err); hErr != nil {
			p.warn("record failure failed", "source", sourceID, "error", hErr)
		}
		report.Errors++
		return report
	}
	if err := p.deps.Health.RecordSuccess(ctx, sourceID); err != nil {
		p.warn("record success failed", "source", sourceID, "error", err)
	}

	for _, item := range items {
		report.Found++
		p.processItem(ctx, item, now, &report)
	}
	return report
}

func (p *Pipeline) processItem(ctx context.Context, item domain.CandidateItem, now time.Time, report *domain.BatchReport) {
	accepted, reason := p.deps.Filter.Accept(item.Headline, item.Summary)
	if !accepted {
		p.debug("item rejected", "source", item.SourceID, "url", item.ExternalURL, "reason", reason)
		report.Rejected++
		return
	}

	dd, err := p.deps.Dedup.Check(ctx, item)
	if err != nil {
		p.warn("dedup check failed", "url", item.ExternalURL, "error", err)
		report.Errors++
		return
	}
	if dd.IsDuplicate {
		p.debug("duplicate item",
			"url", item.ExternalURL, "matching", dd.MatchingID,
			"exact", dd.IsExactDuplicate, "similarity", dd.SimilarityScore)
		report.Duplicate++
		return
	}

	item.ID = uuid.NewString()
	item.CreatedAt = now
	if item.Body == "" {
		item.Body = item.Summary
	}

	cls := p.deps.Scorer.Score(ctx, item)
	item.Classification = &cls

	if err := p.deps.Candidates.Save(ctx, item); err != nil {
		p.warn("persist candidate failed", "url", item.ExternalURL, "error", err)
		report.Errors++
		return
	}
	report.New++

	decision, req, err := p.deps.Engine.Evaluate(ctx, item, p.deps.Policy)
	if err != nil {
		p.warn("auto-file evaluation failed", "candidate", item.ID, "error", err)
		report.Errors++
		return
	}

	switch decision.Outcome {
	case domain.DecisionFiled:
		report.Filed++
		if req != nil && p.deps.Coordinator != nil {
			if _, err := p.deps.Coordinator.Submit(ctx, req.ID, "autofile"); err != nil {
				// The draft stays retryable; submission failures never
				// abort the batch.
				p.warn("submission failed", "request", req.ID, "error", err)
			}
		}
	case domain.DecisionDryRun:
		report.DryRun++
	default:
		report.Skipped++
	}
}

func (p *Pipeline) log(msg string, args ...any) {
	if p.deps.Logger != nil {
		p.deps.Logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.deps.Logger != nil {
		p.deps.Logger.Warn(msg, args...)
	}
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.deps.Logger != nil {
		p.deps.Logger.Debug(msg, args...)
	}
}
