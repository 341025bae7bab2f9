package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordwatch/internal/domain"
)

type memHealthStore struct {
	mu sync.Mutex
	m  map[string]domain.SourceHealth
}

func newMemHealthStore() *memHealthStore {
	return &memHealthStore{m: map[string]domain.SourceHealth{}}
}

func (s *memHealthStore) Get(_ context.Context, sourceID string) (domain.SourceHealth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.m[sourceID]; ok {
		return h, nil
	}
	return domain.SourceHealth{SourceID: sourceID, Enabled: true}, nil
}

func (s *memHealthStore) Upsert(_ context.Context, h domain.SourceHealth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[h.SourceID] = h
	return nil
}

func newTestTracker(t *testing.T) (*Tracker, *memHealthStore, *time.Time) {
	t.Helper()
	store := newMemHealthStore()
	tracker := NewTracker(store, nil)
	current := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return current }
	return tracker, store, &current
}

func TestCircuitOpensAtThreshold(t *testing.T) {
	t.Parallel()

	tracker, store, now := newTestTracker(t)
	ctx := context.Background()

	for i := 0; i < FailureThreshold-1; i++ {
		require.NoError(t, tracker.RecordFailure(ctx, "x", errors.New("timeout")))
		skip, reason, err := tracker.ShouldSkip(ctx, "x")
		require.NoError(t, err)
		assert.False(t, skip)
		assert.Equal(t, ReasonHealthy, reason)
	}

	require.NoError(t, tracker.RecordFailure(ctx, "x", errors.New("timeout")))

	h, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.True(t, h.CircuitOpen)
	assert.Equal(t, FailureThreshold, h.ConsecutiveFailures)
	require.NotNil(t, h.RetryAfter)
	assert.Equal(t, now.Add(Cooldown), *h.RetryAfter)
	assert.Equal(t, "timeout", h.LastError)

	skip, reason, err := tracker.ShouldSkip(ctx, "x")
	require.NoError(t, err)
	assert.True(t, skip)
	assert.Equal(t, ReasonCircuitOpen, reason)
}

func TestSuccessClosesCircuitAndResetsStreak(t *testing.T) {
	t.Parallel()

	tracker, store, _ := newTestTracker(t)
	ctx := context.Background()

	for i := 0; i < FailureThreshold; i++ {
		require.NoError(t, tracker.RecordFailure(ctx, "x", errors.New("boom")))
	}
	require.NoError(t, tracker.RecordSuccess(ctx, "x"))

	h, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.False(t, h.CircuitOpen)
	assert.Zero(t, h.ConsecutiveFailures)
	assert.Nil(t, h.RetryAfter)
	assert.Nil(t, h.CircuitOpenedAt)
	assert.Equal(t, 1, h.TotalSuccesses)
	assert.Equal(t, FailureThreshold, h.TotalFailures)

	skip, reason, err := tracker.ShouldSkip(ctx, "x")
	require.NoError(t, err)
	assert.False(t, skip)
	assert.Equal(t, ReasonHealthy, reason)
}

func TestProbeTiming(t *testing.T) {
	t.Parallel()

	tracker, _, now := newTestTracker(t)
	ctx := context.Background()
	opened := *now

	for i := 0; i < 3; i++ {
		require.NoError(t, tracker.RecordFailure(ctx, "x", errors.New("timeout")))
	}

	// Half way through the cooldown the circuit still blocks.
	*now = opened.Add(3 * time.Hour)
	skip, reason, err := tracker.ShouldSkip(ctx, "x")
	require.NoError(t, err)
	assert.True(t, skip)
	assert.Equal(t, ReasonCircuitOpen, reason)

	// After the cooldown one probe is allowed.
	*now = opened.Add(7 * time.Hour)
	skip, reason, err = tracker.ShouldSkip(ctx, "x")
	require.NoError(t, err)
	assert.False(t, skip)
	assert.Equal(t, ReasonRetryAttempt, reason)
}

func TestSingleProbePerCooldown(t *testing.T) {
	t.Parallel()

	tracker, _, now := newTestTracker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, tracker.RecordFailure(ctx, "x", errors.New("timeout")))
	}
	*now = now.Add(Cooldown + time.Minute)

	skip, reason, err := tracker.ShouldSkip(ctx, "x")
	require.NoError(t, err)
	require.False(t, skip)
	require.Equal(t, ReasonRetryAttempt, reason)

	// A second worker asking during the same window is turned away.
	skip, reason, err = tracker.ShouldSkip(ctx, "x")
	require.NoError(t, err)
	assert.True(t, skip)
	assert.Equal(t, ReasonCircuitOpen, reason)
}

func TestFailedProbeReArmsCooldown(t *testing.T) {
	t.Parallel()

	tracker, store, now := newTestTracker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, tracker.RecordFailure(ctx, "x", errors.New("timeout")))
	}
	*now = now.Add(Cooldown + time.Minute)

	skip, _, err := tracker.ShouldSkip(ctx, "x")
	require.NoError(t, err)
	require.False(t, skip)

	require.NoError(t, tracker.RecordFailure(ctx, "x", errors.New("still down")))

	h, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.True(t, h.CircuitOpen)
	require.NotNil(t, h.RetryAfter)
	assert.Equal(t, now.Add(Cooldown), *h.RetryAfter)
	assert.Nil(t, h.ProbeStartedAt)
}

func TestDisabledSourceSkips(t *testing.T) {
	t.Parallel()

	tracker, store, _ := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, domain.SourceHealth{SourceID: "x", Enabled: false}))

	skip, reason, err := tracker.ShouldSkip(ctx, "x")
	require.NoError(t, err)
	assert.True(t, skip)
	assert.Equal(t, ReasonManuallyDisabled, reason)
}

func TestManualReset(t *testing.T) {
	t.Parallel()

	tracker, store, _ := newTestTracker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, tracker.RecordFailure(ctx, "x", errors.New("timeout")))
	}
	require.NoError(t, tracker.Reset(ctx, "x"))

	h, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.True(t, h.Enabled)
	assert.False(t, h.CircuitOpen)
	assert.Zero(t, h.ConsecutiveFailures)
	assert.Empty(t, h.LastError)
	assert.Nil(t, h.RetryAfter)

	skip, reason, err := tracker.ShouldSkip(ctx, "x")
	require.NoError(t, err)
	assert.False(t, skip)
	assert.Equal(t, ReasonHealthy, reason)
}
