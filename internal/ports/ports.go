package ports

import (
	"context"
	"time"

	"recordwatch/internal/domain"
)

// SourceFeed pulls fresh candidate items from one upstream source.
type SourceFeed interface {
	Fetch(ctx context.Context, sourceID string) ([]domain.CandidateItem, error)
}

// HeadlineRecord is the slim projection the deduplicator fuzzy-matches
// against.
type HeadlineRecord struct {
	ID        string
	Headline  string
	CreatedAt time.Time
}

// CandidateStore persists accepted candidates and answers dedup queries.
type CandidateStore interface {
	FindByURL(ctx context.Context, externalURL string) (string, bool, error)
	RecentHeadlines(ctx context.Context, since time.Time) ([]HeadlineRecord, error)
	Save(ctx context.Context, item domain.CandidateItem) error
}

// HealthStore persists per-source circuit-breaker records. Get returns a
// fresh enabled record when the source has never been observed.
type HealthStore interface {
	Get(ctx context.Context, sourceID string) (domain.SourceHealth, error)
	Upsert(ctx context.Context, health domain.SourceHealth) error
}

// DecisionLog is the append-only auto-file audit trail. Quota and cooldown
// counts are derived from it, never from a separate counter.
type DecisionLog interface {
	Append(ctx context.Context, decision domain.AutoFileDecision) error
	CountFiledSince(ctx context.Context, since time.Time) (int, error)
	CountFiledForTarget(ctx context.Context, targetID string, since time.Time) (int, error)
}

// RequestStore persists requests and their audit trail. Transition applies
// the mutated request fields and inserts the status-change row in one
// transaction; partial failure rolls back both.
type RequestStore interface {
	Create(ctx context.Context, req *domain.Request) error
	Get(ctx context.Context, id string) (domain.Request, error)
	Transition(ctx context.Context, req domain.Request, change domain.RequestStatusChange) error
}

// TargetDirectory exposes the read-only agency registry.
type TargetDirectory interface {
	Get(ctx context.Context, id string) (domain.Target, error)
	All(ctx context.Context) ([]domain.Target, error)
}

// SemanticClassifier is the external classification capability. Transient
// failures are retried by the caller; exhaustion falls back to heuristics.
type SemanticClassifier interface {
	Classify(ctx context.Context, headline, body string, targets []string) (domain.ClassificationResult, error)
}

// CostEstimate is the cost-predictor verdict for one prospective request.
type CostEstimate struct {
	EstimatedCents int
	Confidence     domain.Confidence
}

// CostPredictor estimates what filing against a target will cost.
type CostPredictor interface {
	Predict(ctx context.Context, targetID string, category domain.Category) (CostEstimate, error)
}

// Deliverer sends the rendered submission through the outbound channel. The
// side effect is not idempotent; callers must guard against repeats.
type Deliverer interface {
	Deliver(ctx context.Context, recipient, subject, body string, attachment []byte) error
}

// ArtifactStore durably keeps rendered submission artifacts.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Locker is the mutual-exclusion service guarding non-idempotent effects.
// Acquire returns a LockContentionError when the key is already held.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Release(ctx context.Context, key, token string) error
}

// Publisher emits fire-and-forget operational events.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]string) error
}

// Scheduler controls when ingestion batches execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
