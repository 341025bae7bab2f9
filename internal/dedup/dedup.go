package dedup

import (
	"context"
	"fmt"
	"time"

	"recordwatch/internal/domain"
	"recordwatch/internal/ports"
)

const (
	// SimilarityThreshold above which a headline counts as a fuzzy duplicate.
	SimilarityThreshold = 85
	// LookbackWindow bounds how far back fuzzy matching reaches.
	LookbackWindow = 7 * 24 * time.Hour
)

// Deduplicator rejects candidates already seen, first by exact external URL,
// then by fuzzy headline match against recent items.
type Deduplicator struct {
	candidates ports.CandidateStore
	threshold  int
	lookback   time.Duration
	now        func() time.Time
}

// NewDeduplicator wires the candidate store with default threshold/window.
func NewDeduplicator(candidates ports.CandidateStore) *Deduplicator {
	return &Deduplicator{
		candidates: candidates,
		threshold:  SimilarityThreshold,
		lookback:   LookbackWindow,
		now:        time.Now,
	}
}

// Check classifies the candidate as new or duplicate. An empty headline is
// only checked for exact URL collisions.
func (d *Deduplicator) Check(ctx context.Context, item domain.CandidateItem) (domain.DedupResult, error) {
	result := domain.DedupResult{CheckedAt: d.now()}

	if id, exists, err := d.candidates.FindByURL(ctx, item.ExternalURL); err != nil {
		return result, fmt.Errorf("exact dedup %s: %w", item.ExternalURL, err)
	} else if exists {
		result.IsDuplicate = true
		result.IsExactDuplicate = true
		result.MatchingID = id
		result.SimilarityScore = 100
		return result, nil
	}

	if item.Headline == "" {
		return result, nil
	}

	recent, err := d.candidates.RecentHeadlines(ctx, d.now().Add(-d.lookback))
	if err != nil {
		return result, fmt.Errorf("load recent headlines: %w", err)
	}

	for _, rec := range recent {
		if rec.Headline == "" {
			continue
		}
		score := Similarity(item.Headline, rec.Headline)
		if score > d.threshold {
			result.IsDuplicate = true
			result.MatchingID = rec.ID
			result.SimilarityScore = score
			return result, nil
		}
	}

	return result, nil
}
