package submit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordwatch/internal/domain"
	"recordwatch/internal/infrastructure/locker"
	"recordwatch/internal/lifecycle"
)

type memRequestStore struct {
	mu       sync.Mutex
	requests map[string]domain.Request
	changes  []domain.RequestStatusChange
}

func newMemRequestStore() *memRequestStore {
	return &memRequestStore{requests: map[string]domain.Request{}}
}

func (s *memRequestStore) Create(_ context.Context, req *domain.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = *req
	return nil
}

func (s *memRequestStore) Get(_ context.Context, id string) (domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req, ok := s.requests[id]; ok {
		return req, nil
	}
	return domain.Request{}, fmt.Errorf("request %s not found", id)
}

func (s *memRequestStore) Transition(_ context.Context, req domain.Request, change domain.RequestStatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
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

type countingDeliverer struct {
	mu    sync.Mutex
	calls int
	err   error
	gate  chan struct{} // when set, Deliver blocks until the gate closes
}

func (d *countingDeliverer) Deliver(_ context.Context, _, _, _ string, _ []byte) error {
	d.mu.Lock()
	d.calls++
	gate := d.gate
	err := d.err
	d.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (d *countingDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type memArtifacts struct {
	mu     sync.Mutex
	data   map[string][]byte
	putErr error
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{data: map[string][]byte{}}
}

func (a *memArtifacts) Put(_ context.Context, key string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.putErr != nil {
		return a.putErr
	}
	a.data[key] = data
	return nil
}

func (a *memArtifacts) Get(_ context.Context, key string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if data, ok := a.data[key]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("artifact %s not found", key)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *capturePublisher) Publish(_ context.Context, eventType string, _ map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

type fixture struct {
	store     *memRequestStore
	locker    *locker.MemoryLocker
	deliverer *countingDeliverer
	artifacts *memArtifacts
	publisher *capturePublisher
	coord     *Coordinator
}

func newFixture() *fixture {
	store := newMemRequestStore()
	target := domain.Target{ID: "metro", Name: "Metro PD", ContactEmail: "records@metro.example.gov"}
	targets := &staticTargets{target: target}
	f := &fixture{
		store:     store,
		locker:    locker.NewMemoryLocker(),
		deliverer: &countingDeliverer{},
		artifacts: newMemArtifacts(),
		publisher: &capturePublisher{},
	}
	lc := lifecycle.NewManager(store, targets, nil)
	f.coord = NewCoordinator(store, targets, lc, f.locker, f.deliverer, f.artifacts, f.publisher, nil)
	return f
}

func (f *fixture) seedDraft(id string) {
	f.store.requests[id] = domain.Request{
		ID:              id,
		TargetID:        "metro",
		Status:          domain.StatusDraft,
		ReferenceNumber: "PRR-2026-000001",
		Subject:         "Records request",
		Body:            "All reports concerning the March 9 incident.",
	}
}

func TestSubmitHappyPath(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedDraft("req-1")

	updated, err := f.coord.Submit(context.Background(), "req-1", "operator")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSubmitted, updated.Status)
	assert.Equal(t, 1, f.deliverer.count())

	artifact, err := f.artifacts.Get(context.Background(), ArtifactKey("req-1"))
	require.NoError(t, err)
	assert.Contains(t, string(artifact), "PRR-2026-000001")

	require.Len(t, f.store.changes, 1)
	assert.Equal(t, domain.StatusSubmitted, f.store.changes[0].ToStatus)
	assert.Contains(t, f.publisher.events, "request_submitted")
}

func TestSubmitReleasesLockAfterSuccess(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedDraft("req-1")

	_, err := f.coord.Submit(context.Background(), "req-1", "operator")
	require.NoError(t, err)

	// A fresh acquire succeeds only if Submit released its lease.
	token, err := f.locker.Acquire(context.Background(), "submit:req-1", LockTTL)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestConcurrentSubmitsDeliverOnce(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedDraft("req-1")
	gate := make(chan struct{})
	f.deliverer.gate = gate

	const workers = 5
	errs := make(chan error, workers)
	started := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started <- struct{}{}
			_, err := f.coord.Submit(context.Background(), "req-1", "operator")
			errs <- err
		}()
	}
	for i := 0; i < workers; i++ {
		<-started
	}
	close(gate)
	wg.Wait()
	close(errs)

	var ok, contended int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			var contention *domain.LockContentionError
			if errors.As(err, &contention) {
				contended++
			} else {
				// Losers that arrive after the winner released see the
				// request already SUBMITTED.
				var invalid *domain.InvalidTransitionError
				require.ErrorAs(t, err, &invalid)
				contended++
			}
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, contended)
	assert.Equal(t, 1, f.deliverer.count(), "delivery must happen at most once")
}

func TestSubmitNonDraftRejected(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.store.requests["req-1"] = domain.Request{ID: "req-1", TargetID: "metro", Status: domain.StatusSubmitted}

	_, err := f.coord.Submit(context.Background(), "req-1", "operator")

	var invalid *domain.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 0, f.deliverer.count())
}

func TestDeliveryFailureLeavesDraftRetryable(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedDraft("req-1")
	f.deliverer.err = domain.Transient("deliver", errors.New("gateway timeout"))

	_, err := f.coord.Submit(context.Background(), "req-1", "operator")
	require.Error(t, err)

	req, getErr := f.store.Get(context.Background(), "req-1")
	require.NoError(t, getErr)
	assert.Equal(t, domain.StatusDraft, req.Status)
	assert.Empty(t, f.artifacts.data)
	assert.Empty(t, f.store.changes)

	// The failure did not poison the request; a retry succeeds.
	f.deliverer.err = nil
	updated, err := f.coord.Submit(context.Background(), "req-1", "operator")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, updated.Status)
}

func TestArtifactFailureAfterDeliveryIsFatal(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedDraft("req-1")
	f.artifacts.putErr = errors.New("disk full")

	_, err := f.coord.Submit(context.Background(), "req-1", "operator")

	var fatal *domain.FatalConsistencyError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "req-1", fatal.RequestID)
	assert.Equal(t, 1, f.deliverer.count(), "delivery already happened")
	assert.Contains(t, f.publisher.events, "fatal_consistency")

	// The request stays out of SUBMITTED so an operator reconciles by hand.
	req, getErr := f.store.Get(context.Background(), "req-1")
	require.NoError(t, getErr)
	assert.Equal(t, domain.StatusDraft, req.Status)
}

func TestRenderArtifactDeterministic(t *testing.T) {
	t.Parallel()

	req := domain.Request{ReferenceNumber: "PRR-2026-000042", Subject: "s", Body: "b"}
	target := domain.Target{Name: "Metro PD", ContactEmail: "records@metro.example.gov"}

	first := RenderArtifact(req, target)
	second := RenderArtifact(req, target)
	assert.Equal(t, first, second)
}
