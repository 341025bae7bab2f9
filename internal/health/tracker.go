package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"recordwatch/internal/ports"
)

const (
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold = 3
	// Cooldown blocks a source after its circuit opens.
	Cooldown = 6 * time.Hour
)

// Skip/allow reason codes returned by ShouldSkip.
const (
	ReasonManuallyDisabled = "manually_disabled"
	ReasonCircuitOpen      = "circuit_open"
	ReasonRetryAttempt     = "retry_attempt"
	ReasonHealthy          = "healthy"
)

// Tracker is the per-source circuit breaker. Mutations for one source are
// serialized through a per-source mutex; distinct sources proceed
// concurrently.
type Tracker struct {
	store  ports.HealthStore
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	sources map[string]*sync.Mutex
}

// NewTracker wires the persistence port.
func NewTracker(store ports.HealthStore, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:   store,
		logger:  logger,
		now:     time.Now,
		sources: map[string]*sync.Mutex{},
	}
}

func (t *Tracker) sourceMu(sourceID string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.sources[sourceID]
	if !ok {
		m = &sync.Mutex{}
		t.sources[sourceID] = m
	}
	return m
}

// RecordSuccess zeroes the failure streak and closes the circuit if open.
func (t *Tracker) RecordSuccess(ctx context.Context, sourceID string) error {
	mu := t.sourceMu(sourceID)
	mu.Lock()
	defer mu.Unlock()

	h, err := t.store.Get(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("load health %s: %w", sourceID, err)
	}

	now := t.now()
	h.ConsecutiveFailures = 0
	h.TotalSuccesses++
	h.LastSuccessAt = &now
	if h.CircuitOpen {
		t.log("circuit closed after successful probe", "source", sourceID)
		h.CircuitOpen = false
		h.CircuitOpenedAt = nil
		h.RetryAfter = nil
		h.ProbeStartedAt = nil
	}

	return t.store.Upsert(ctx, h)
}

// RecordFailure bumps the failure counters and opens the circuit once the
// streak reaches the threshold. A failed probe re-arms the cooldown.
func (t *Tracker) RecordFailure(ctx context.Context, sourceID string, cause error) error {
	mu := t.sourceMu(sourceID)
	mu.Lock()
	defer mu.Unlock()

	h, err := t.store.Get(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("load health %s: %w", sourceID, err)
	}

	now := t.now()
	h.ConsecutiveFailures++
	h.TotalFailures++
	h.LastFailureAt = &now
	if cause != nil {
		h.LastError = cause.Error()
	}

	switch {
	case !h.CircuitOpen && h.ConsecutiveFailures >= FailureThreshold:
		opened := now
		retry := now.Add(Cooldown)
		h.CircuitOpen = true
		h.CircuitOpenedAt = &opened
		h.RetryAfter = &retry
		h.ProbeStartedAt = nil
		t.log("circuit opened", "source", sourceID, "failures", h.ConsecutiveFailures, "retry_after", retry)
	case h.CircuitOpen:
		retry := now.Add(Cooldown)
		h.RetryAfter = &retry
		h.ProbeStartedAt = nil
		t.log("probe failed, cooldown re-armed", "source", sourceID, "retry_after", retry)
	}

	return t.store.Upsert(ctx, h)
}

// ShouldSkip gates one fetch attempt for the source. Once the cooldown
// elapses, exactly one caller gets the probe; the stamp is consumed under
// the per-source mutex so concurrent workers cannot double-probe.
func (t *Tracker) ShouldSkip(ctx context.Context, sourceID string) (bool, string, error) {
	mu := t.sourceMu(sourceID)
	mu.Lock()
	defer mu.Unlock()

	h, err := t.store.Get(ctx, sourceID)
	if err != nil {
		return true, "", fmt.Errorf("load health %s: %w", sourceID, err)
	}

	if !h.Enabled {
		return true, ReasonManuallyDisabled, nil
	}
	if !h.CircuitOpen {
		return false, ReasonHealthy, nil
	}

	now := t.now()
	if h.RetryAfter != nil && now.Before(*h.RetryAfter) {
		return true, ReasonCircuitOpen, nil
	}
	if h.ProbeStartedAt != nil && h.RetryAfter != nil && !h.ProbeStartedAt.Before(*h.RetryAfter) {
		// Probe already claimed for this cooldown window.
		return true, ReasonCircuitOpen, nil
	}

	h.ProbeStartedAt = &now
	if err := t.store.Upsert(ctx, h); err != nil {
		return true, "", fmt.Errorf("claim probe %s: %w", sourceID, err)
	}
	return false, ReasonRetryAttempt, nil
}

// Reset is the manual admin escape hatch: force-close the circuit and zero
// the streak.
func (t *Tracker) Reset(ctx context.Context, sourceID string) error {
	mu := t.sourceMu(sourceID)
	mu.Lock()
	defer mu.Unlock()

	h, err := t.store.Get(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("load health %s: %w", sourceID, err)
	}

	h.Enabled = true
	h.CircuitOpen = false
	h.ConsecutiveFailures = 0
	h.CircuitOpenedAt = nil
	h.RetryAfter = nil
	h.ProbeStartedAt = nil
	h.LastError = ""
	t.log("circuit manually reset", "source", sourceID)

	return t.store.Upsert(ctx, h)
}

func (t *Tracker) log(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Info(msg, args...)
	}
}
