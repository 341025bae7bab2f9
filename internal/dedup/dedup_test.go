package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordwatch/internal/domain"
	"recordwatch/internal/ports"
)

type memCandidateStore struct {
	byURL     map[string]string
	headlines []ports.HeadlineRecord
}

func newMemCandidateStore() *memCandidateStore {
	return &memCandidateStore{byURL: map[string]string{}}
}

func (s *memCandidateStore) FindByURL(_ context.Context, url string) (string, bool, error) {
	id, ok := s.byURL[url]
	return id, ok, nil
}

func (s *memCandidateStore) RecentHeadlines(_ context.Context, since time.Time) ([]ports.HeadlineRecord, error) {
	var recent []ports.HeadlineRecord
	for _, rec := range s.headlines {
		if !rec.CreatedAt.Before(since) {
			recent = append(recent, rec)
		}
	}
	return recent, nil
}

func (s *memCandidateStore) Save(_ context.Context, item domain.CandidateItem) error {
	s.byURL[item.ExternalURL] = item.ID
	s.headlines = append(s.headlines, ports.HeadlineRecord{
		ID: item.ID, Headline: item.Headline, CreatedAt: item.CreatedAt,
	})
	return nil
}

func newTestDedup(store *memCandidateStore, now time.Time) *Deduplicator {
	d := NewDeduplicator(store)
	d.now = func() time.Time { return now }
	return d
}

func TestExactURLDuplicate(t *testing.T) {
	t.Parallel()

	store := newMemCandidateStore()
	store.byURL["https://news.example.org/a"] = "existing-id"
	d := newTestDedup(store, time.Now())

	result, err := d.Check(context.Background(), domain.CandidateItem{
		ExternalURL: "https://news.example.org/a",
		Headline:    "whatever",
	})
	require.NoError(t, err)
	assert.True(t, result.IsDuplicate)
	assert.True(t, result.IsExactDuplicate)
	assert.Equal(t, "existing-id", result.MatchingID)
}

func TestFuzzyDuplicateWithinWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	store := newMemCandidateStore()
	store.headlines = []ports.HeadlineRecord{
		{ID: "older", Headline: "Police officer shoots armed suspect on Main Street", CreatedAt: now.Add(-48 * time.Hour)},
	}
	d := newTestDedup(store, now)

	result, err := d.Check(context.Background(), domain.CandidateItem{
		ExternalURL: "https://news.example.org/b",
		Headline:    "Police officer shoots armed suspect on Main St",
	})
	require.NoError(t, err)
	assert.True(t, result.IsDuplicate)
	assert.False(t, result.IsExactDuplicate)
	assert.Equal(t, "older", result.MatchingID)
	assert.Greater(t, result.SimilarityScore, SimilarityThreshold)
}

func TestFuzzyMatchOutsideWindowIgnored(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	store := newMemCandidateStore()
	store.headlines = []ports.HeadlineRecord{
		{ID: "ancient", Headline: "Police officer shoots armed suspect on Main Street", CreatedAt: now.Add(-8 * 24 * time.Hour)},
	}
	d := newTestDedup(store, now)

	result, err := d.Check(context.Background(), domain.CandidateItem{
		ExternalURL: "https://news.example.org/c",
		Headline:    "Police officer shoots armed suspect on Main Street",
	})
	require.NoError(t, err)
	assert.False(t, result.IsDuplicate)
}

func TestBelowThresholdAccepted(t *testing.T) {
	t.Parallel()

	now := time.Now()
	store := newMemCandidateStore()
	store.headlines = []ports.HeadlineRecord{
		{ID: "other", Headline: "City council passes annual budget", CreatedAt: now.Add(-time.Hour)},
	}
	d := newTestDedup(store, now)

	result, err := d.Check(context.Background(), domain.CandidateItem{
		ExternalURL: "https://news.example.org/d",
		Headline:    "Officer-involved shooting under investigation",
	})
	require.NoError(t, err)
	assert.False(t, result.IsDuplicate)
}

func TestEmptyHeadlineOnlyExactChecked(t *testing.T) {
	t.Parallel()

	now := time.Now()
	store := newMemCandidateStore()
	store.headlines = []ports.HeadlineRecord{
		{ID: "any", Headline: "Police officer shoots armed suspect", CreatedAt: now.Add(-time.Hour)},
	}
	d := newTestDedup(store, now)

	result, err := d.Check(context.Background(), domain.CandidateItem{
		ExternalURL: "https://news.example.org/e",
	})
	require.NoError(t, err)
	assert.False(t, result.IsDuplicate)
}
