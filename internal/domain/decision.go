package domain

import "time"

// DecisionOutcome is the verdict of one auto-file evaluation.
type DecisionOutcome string

const (
	DecisionFiled   DecisionOutcome = "filed"
	DecisionDryRun  DecisionOutcome = "dry_run"
	DecisionSkipped DecisionOutcome = "skipped"
)

// Skip reason codes written to the decision log. Every skip is explainable
// by exactly one of these.
const (
	ReasonModeOff         = "mode_off"
	ReasonNoTargetContact = "no_target_contact"
	ReasonBelowThreshold  = "below_threshold"
	ReasonDailyQuota      = "daily_quota"
	ReasonTargetCooldown  = "target_cooldown"
	ReasonCostCap         = "cost_cap"
	ReasonLowConfidence   = "low_confidence"
	ReasonDryRun          = "dry_run"
	ReasonFiled           = "filed"
)

// AutoFileMode selects how the decision engine behaves for a batch.
type AutoFileMode string

const (
	ModeOff    AutoFileMode = "off"
	ModeDryRun AutoFileMode = "dry_run"
	ModeLive   AutoFileMode = "live"
)

// AutoFileDecision is one immutable row in the decision audit log. Quota and
// cooldown counts are derived from these rows, never from a separate counter.
type AutoFileDecision struct {
	ID          string
	CandidateID string
	TargetID    string
	Outcome     DecisionOutcome
	Reason      string
	RequestID   string
	EvaluatedAt time.Time
}

// AutoFilePolicy is the immutable per-batch snapshot of the knobs the
// decision engine enforces.
type AutoFilePolicy struct {
	Mode                 AutoFileMode
	EligibilityThreshold int
	DailyQuota           int
	TargetCooldown       time.Duration
	TargetCooldownCap    int
	CostCapCents         int
}
