package domain

import "time"

// CandidateItem is a news item pulled from an upstream feed, keyed for
// deduplication by its external URL.
type CandidateItem struct {
	ID          string
	SourceID    string
	ExternalURL string
	Headline    string
	Summary     string
	Body        string
	PublishedAt time.Time
	CreatedAt   time.Time

	// Classification is attached once, after scoring.
	Classification *ClassificationResult
}

// DedupResult explains why a candidate was (or was not) flagged duplicate.
type DedupResult struct {
	IsDuplicate      bool
	IsExactDuplicate bool
	MatchingID       string
	SimilarityScore  int
	CheckedAt        time.Time
}

// BatchReport aggregates one ingestion run across all sources.
type BatchReport struct {
	Found     int
	New       int
	Duplicate int
	Rejected  int
	Errors    int
	Filed     int
	DryRun    int
	Skipped   int
}
