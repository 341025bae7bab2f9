package classify

import (
	"context"
	"log/slog"

	"recordwatch/internal/domain"
	"recordwatch/internal/ports"
	"recordwatch/internal/retry"
)

// MaxBodyChars bounds how much body text is sent to the classifier.
const MaxBodyChars = 1000

// Scorer classifies candidates, preferring the external semantic capability
// and falling back to the deterministic keyword heuristic when it is
// unavailable or retries are exhausted.
type Scorer struct {
	semantic  ports.SemanticClassifier
	heuristic *Heuristic
	targets   []domain.Target
	policy    retry.Policy
	logger    *slog.Logger
}

// NewScorer wires the semantic adapter (may be nil) and the target registry
// snapshot used for detection.
func NewScorer(semantic ports.SemanticClassifier, targets []domain.Target, policy retry.Policy, logger *slog.Logger) *Scorer {
	return &Scorer{
		semantic:  semantic,
		heuristic: NewHeuristic(targets),
		targets:   targets,
		policy:    policy,
		logger:    logger,
	}
}

// Score attaches a classification to the candidate. The result is always
// tagged with the method that produced it and has severity/virality clamped
// to [1,10].
func (s *Scorer) Score(ctx context.Context, item domain.CandidateItem) domain.ClassificationResult {
	body := truncate(item.Body, MaxBodyChars)

	if s.semantic != nil {
		names := make([]string, 0, len(s.targets))
		for _, t := range s.targets {
			names = append(names, t.Name)
		}

		var result domain.ClassificationResult
		err := s.policy.Do(ctx, func() error {
			var callErr error
			result, callErr = s.semantic.Classify(ctx, item.Headline, body, names)
			return callErr
		})
		if err == nil {
			result.Method = domain.MethodSemantic
			result.Severity = domain.ClampScore(result.Severity)
			result.Virality = domain.ClampScore(result.Virality)
			if result.MatchedTarget != "" {
				result.MatchedTarget = s.resolveTarget(result.MatchedTarget)
			}
			return result
		}
		s.log("semantic classification failed, using heuristic", "candidate", item.ID, "error", err)
	}

	return s.heuristic.Classify(item.Headline, body)
}

// resolveTarget maps a classifier-returned target name back to a registry
// id; unknown names clear the match.
func (s *Scorer) resolveTarget(name string) string {
	for _, t := range s.targets {
		if t.Name == name || t.ID == name {
			return t.ID
		}
	}
	return ""
}

func (s *Scorer) log(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
