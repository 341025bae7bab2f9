package domain

import "time"

// SourceHealth is the persisted circuit-breaker record for one feed source.
// Counters are monitoring signals; last-writer-wins under rare races is
// acceptable.
type SourceHealth struct {
	SourceID            string
	Enabled             bool
	CircuitOpen         bool
	ConsecutiveFailures int
	TotalFailures       int
	TotalSuccesses      int
	LastSuccessAt       *time.Time
	LastFailureAt       *time.Time
	CircuitOpenedAt     *time.Time
	RetryAfter          *time.Time
	ProbeStartedAt      *time.Time
	LastError           string
}
