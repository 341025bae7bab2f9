package lifecycle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordwatch/internal/domain"
)

type memRequestStore struct {
	requests map[string]domain.Request
	changes  []domain.RequestStatusChange
}

func newMemRequestStore() *memRequestStore {
	return &memRequestStore{requests: map[string]domain.Request{}}
}

func (s *memRequestStore) Create(_ context.Context, req *domain.Request) error {
	s.requests[req.ID] = *req
	return nil
}

func (s *memRequestStore) Get(_ context.Context, id string) (domain.Request, error) {
	if req, ok := s.requests[id]; ok {
		return req, nil
	}
	return domain.Request{}, fmt.Errorf("request %s not found", id)
}

func (s *memRequestStore) Transition(_ context.Context, req domain.Request, change domain.RequestStatusChange) error {
	s.requests[req.ID] = req
	s.changes = append(s.changes, change)
	return nil
}

type staticTargets struct {
	target domain.Target
}

func (s *staticTargets) Get(_ context.Context, _ string) (domain.Target, error) {
	return s.target, nil
}

func (s *staticTargets) All(_ context.Context) ([]domain.Target, error) {
	return []domain.Target{s.target}, nil
}

func newTestManager(store *memRequestStore, target domain.Target) (*Manager, time.Time) {
	m := NewManager(store, &staticTargets{target: target}, nil)
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, now
}

func seedRequest(store *memRequestStore, status domain.RequestStatus) domain.Request {
	req := domain.Request{ID: "req-1", TargetID: "metro", Status: status}
	store.requests[req.ID] = req
	return req
}

func TestInvalidTransitionRejected(t *testing.T) {
	t.Parallel()

	store := newMemRequestStore()
	seedRequest(store, domain.StatusFulfilled)
	m, _ := newTestManager(store, domain.Target{ID: "metro"})

	_, err := m.Transition(context.Background(), "req-1", domain.StatusSubmitted, "tester", "", nil)

	var invalid *domain.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, domain.StatusFulfilled, invalid.From)
	assert.Equal(t, domain.StatusSubmitted, invalid.To)
	assert.Empty(t, store.changes, "no audit row may be written for a rejected transition")
}

func TestAcceptedTransitionWritesOneAuditRow(t *testing.T) {
	t.Parallel()

	store := newMemRequestStore()
	seedRequest(store, domain.StatusSubmitted)
	m, now := newTestManager(store, domain.Target{ID: "metro"})

	updated, err := m.Transition(context.Background(), "req-1", domain.StatusAcknowledged, "intake", "agency replied", map[string]string{"channel": "email"})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAcknowledged, updated.Status)
	require.Len(t, store.changes, 1)
	change := store.changes[0]
	assert.Equal(t, domain.StatusSubmitted, change.FromStatus)
	assert.Equal(t, domain.StatusAcknowledged, change.ToStatus)
	assert.Equal(t, "intake", change.ChangedBy)
	assert.Equal(t, now, change.CreatedAt)
	assert.NotEmpty(t, change.ID)
}

func TestDueAtComputedOnceAtSubmission(t *testing.T) {
	t.Parallel()

	store := newMemRequestStore()
	seedRequest(store, domain.StatusDraft)
	target := domain.Target{ID: "metro", AvgResponseInterval: 10 * 24 * time.Hour}
	m, now := newTestManager(store, target)

	updated, err := m.Transition(context.Background(), "req-1", domain.StatusSubmitted, "coordinator", "", nil)
	require.NoError(t, err)

	require.NotNil(t, updated.SubmittedAt)
	require.NotNil(t, updated.DueAt)
	assert.Equal(t, now, *updated.SubmittedAt)
	assert.Equal(t, now.Add(10*24*time.Hour), *updated.DueAt)

	// Later transitions never recompute due_at.
	due := *updated.DueAt
	updated, err = m.Transition(context.Background(), "req-1", domain.StatusProcessing, "intake", "", nil)
	require.NoError(t, err)
	require.NotNil(t, updated.DueAt)
	assert.Equal(t, due, *updated.DueAt)
}

func TestDueAtDefaultsToThirtyDays(t *testing.T) {
	t.Parallel()

	store := newMemRequestStore()
	seedRequest(store, domain.StatusReady)
	m, now := newTestManager(store, domain.Target{ID: "metro"})

	updated, err := m.Transition(context.Background(), "req-1", domain.StatusSubmitted, "coordinator", "", nil)
	require.NoError(t, err)
	require.NotNil(t, updated.DueAt)
	assert.Equal(t, now.Add(30*24*time.Hour), *updated.DueAt)
}

func TestDeniedCanBeAppealed(t *testing.T) {
	t.Parallel()

	store := newMemRequestStore()
	seedRequest(store, domain.StatusDenied)
	m, _ := newTestManager(store, domain.Target{ID: "metro"})

	updated, err := m.Transition(context.Background(), "req-1", domain.StatusAppealed, "operator", "appealing denial", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAppealed, updated.Status)

	updated, err = m.Transition(context.Background(), "req-1", domain.StatusFulfilled, "intake", "", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFulfilled, updated.Status)
	require.NotNil(t, updated.FulfilledAt)
}

func TestAnyNonTerminalCanClose(t *testing.T) {
	t.Parallel()

	for _, status := range []domain.RequestStatus{
		domain.StatusDraft, domain.StatusReady, domain.StatusSubmitted,
		domain.StatusAcknowledged, domain.StatusProcessing,
		domain.StatusPartial, domain.StatusDenied, domain.StatusAppealed,
	} {
		store := newMemRequestStore()
		seedRequest(store, status)
		m, _ := newTestManager(store, domain.Target{ID: "metro"})

		updated, err := m.Transition(context.Background(), "req-1", domain.StatusClosed, "operator", "closing", nil)
		require.NoError(t, err, "closing from %s", status)
		assert.Equal(t, domain.StatusClosed, updated.Status)
	}
}

func TestTerminalStatesBlockAllMoves(t *testing.T) {
	t.Parallel()

	for _, status := range []domain.RequestStatus{domain.StatusFulfilled, domain.StatusClosed} {
		store := newMemRequestStore()
		seedRequest(store, status)
		m, _ := newTestManager(store, domain.Target{ID: "metro"})

		_, err := m.Transition(context.Background(), "req-1", domain.StatusClosed, "operator", "", nil)
		var invalid *domain.InvalidTransitionError
		require.ErrorAs(t, err, &invalid, "from %s", status)
	}
}

func TestEveryAcceptedTransitionAppendsInOrder(t *testing.T) {
	t.Parallel()

	store := newMemRequestStore()
	seedRequest(store, domain.StatusDraft)
	m, _ := newTestManager(store, domain.Target{ID: "metro"})

	path := []domain.RequestStatus{
		domain.StatusSubmitted, domain.StatusAcknowledged,
		domain.StatusProcessing, domain.StatusDenied, domain.StatusAppealed, domain.StatusClosed,
	}
	for _, next := range path {
		_, err := m.Transition(context.Background(), "req-1", next, "tester", "", nil)
		require.NoError(t, err)
	}

	require.Len(t, store.changes, len(path))
	for i, change := range store.changes {
		assert.Equal(t, path[i], change.ToStatus)
	}
}
