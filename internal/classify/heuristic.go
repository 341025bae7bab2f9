package classify

import (
	"strings"

	"recordwatch/internal/domain"
)

// categoryRule binds a category to its trigger keywords and base severity.
// Rules are evaluated in order; the first match wins, so the most severe
// categories come first.
type categoryRule struct {
	category domain.Category
	severity int
	keywords []string
}

var defaultCategoryRules = []categoryRule{
	{domain.CategoryOIS, 9, []string{"officer-involved shooting", "police shooting", "shot by police", "shot by officer", "ois"}},
	{domain.CategoryDeathInCustody, 8, []string{"died in custody", "death in custody", "jail death", "died in jail", "in-custody death"}},
	{domain.CategoryUseOfForce, 6, []string{"use of force", "excessive force", "taser", "tased", "baton", "pepper spray", "chokehold"}},
	{domain.CategoryPursuit, 5, []string{"police pursuit", "police chase", "high-speed chase", "vehicle pursuit"}},
	{domain.CategoryMisconduct, 4, []string{"misconduct", "internal affairs", "disciplinary", "falsified", "perjury", "corruption"}},
	{domain.CategoryProtest, 3, []string{"protest", "demonstration", "crowd control", "curfew"}},
}

// modifier is one (predicate, delta) entry in the ordered escalation table.
// Modifiers are additive and applied left to right with a final clamp.
type modifier struct {
	name     string
	delta    int
	keywords []string
}

var severityModifiers = []modifier{
	{"fatality", 2, []string{"killed", "dead", "fatal", "died", "deceased"}},
	{"injury", 1, []string{"injured", "hospitalized", "wounded", "critical condition"}},
	{"multiple_actors", 1, []string{"officers", "multiple officers", "several officers"}},
	{"recording", 1, []string{"video", "bodycam", "body camera", "footage", "recorded"}},
	{"prior_complaint", 1, []string{"prior complaints", "previous complaints", "lawsuit", "history of"}},
}

var viralityModifiers = []modifier{
	{"recording", 2, []string{"video", "bodycam", "body camera", "footage", "recorded"}},
	{"spread", 2, []string{"viral", "trending", "widely shared"}},
	{"unrest", 1, []string{"protest", "outrage", "demonstration"}},
	{"fatality", 1, []string{"killed", "dead", "fatal", "died"}},
}

const (
	defaultSeverity = 2
	baseVirality    = 3
)

// Heuristic is the deterministic keyword fallback used when the semantic
// classifier is unavailable. Identical input always yields identical output.
type Heuristic struct {
	rules    []categoryRule
	severity []modifier
	virality []modifier
	targets  []domain.Target
}

// NewHeuristic builds the fallback scorer over the known target registry.
func NewHeuristic(targets []domain.Target) *Heuristic {
	return &Heuristic{
		rules:    defaultCategoryRules,
		severity: severityModifiers,
		virality: viralityModifiers,
		targets:  targets,
	}
}

// Classify scores the text with the keyword tables. Confidence is medium
// when a category keyword matched, low for the default bucket.
func (h *Heuristic) Classify(headline, body string) domain.ClassificationResult {
	text := strings.ToLower(headline + " " + body)

	category := domain.CategoryOther
	severity := defaultSeverity
	matched := false
	for _, rule := range h.rules {
		if containsAny(text, rule.keywords) {
			category = rule.category
			severity = rule.severity
			matched = true
			break
		}
	}

	for _, mod := range h.severity {
		if containsAny(text, mod.keywords) {
			severity += mod.delta
		}
	}

	virality := baseVirality
	for _, mod := range h.virality {
		if containsAny(text, mod.keywords) {
			virality += mod.delta
		}
	}

	confidence := domain.ConfidenceLow
	if matched {
		confidence = domain.ConfidenceMedium
	}

	return domain.ClassificationResult{
		Category:      category,
		Severity:      domain.ClampScore(severity),
		Virality:      domain.ClampScore(virality),
		Confidence:    confidence,
		Method:        domain.MethodHeuristic,
		MatchedTarget: h.matchTarget(text),
		Rationale:     "keyword heuristic",
	}
}

// matchTarget picks the target whose longest pattern appears in the text.
func (h *Heuristic) matchTarget(text string) string {
	var bestID string
	bestLen := 0
	for _, target := range h.targets {
		for _, pattern := range target.Patterns {
			p := strings.ToLower(pattern)
			if len(p) > bestLen && strings.Contains(text, p) {
				bestID = target.ID
				bestLen = len(p)
			}
		}
	}
	return bestID
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
