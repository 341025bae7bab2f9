package parser

import (
	"context"
	"fmt"
	"log/slog"

	"recordwatch/internal/config"
	"recordwatch/internal/domain"
	"recordwatch/internal/ports"
	"recordwatch/internal/scanner"
)

// StrategySource implements ports.SourceFeed via registered scanner
// strategies, one configured source at a time.
type StrategySource struct {
	registry *scanner.Registry
	sources  []config.SourceConfig
	logger   *slog.Logger
}

var _ ports.SourceFeed = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with config-defined sources.
func NewStrategySource(reg *scanner.Registry, sources []config.SourceConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sources:  sources,
		logger:   log,
	}
}

// SourceIDs lists the configured source identifiers in config order.
func (s *StrategySource) SourceIDs() []string {
	ids := make([]string, 0, len(s.sources))
	for _, src := range s.sources {
		ids = append(ids, src.ID)
	}
	return ids
}

// Fetch executes the scanner strategy configured for the source.
func (s *StrategySource) Fetch(ctx context.Context, sourceID string) ([]domain.CandidateItem, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	src, ok := s.lookup(sourceID)
	if !ok {
		return nil, domain.Permanent("fetch", fmt.Errorf("source %s is not configured", sourceID))
	}

	strategy, err := s.registry.Resolve(src.Scanner)
	if err != nil {
		return nil, domain.Permanent("fetch", fmt.Errorf("source %s: %w", sourceID, err))
	}

	req := scanner.Request{
		SourceID: src.ID,
		URL:      src.URL,
		Options:  src.Options,
		Selectors: scanner.Selectors{
			Item:     src.Selectors.Item,
			Headline: src.Selectors.Headline,
			Link:     src.Selectors.Link,
			Summary:  src.Selectors.Summary,
			Date:     src.Selectors.Date,
		},
	}

	items, err := strategy.Scan(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("scan source %s: %w", sourceID, err)
	}

	s.debug("source produced items", "source", sourceID, "count", len(items))
	return items, nil
}

func (s *StrategySource) lookup(sourceID string) (config.SourceConfig, bool) {
	for _, src := range s.sources {
		if src.ID == sourceID {
			return src, true
		}
	}
	return config.SourceConfig{}, false
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
