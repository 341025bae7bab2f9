package domain

// Category buckets an incident by what happened. Ordered here from most to
// least severe; the heuristic scorer picks the first category whose keywords
// match.
type Category string

const (
	CategoryOIS            Category = "ois"
	CategoryDeathInCustody Category = "death_in_custody"
	CategoryUseOfForce     Category = "use_of_force"
	CategoryPursuit        Category = "pursuit"
	CategoryMisconduct     Category = "misconduct"
	CategoryProtest        Category = "protest"
	CategoryOther          Category = "other"
)

// Confidence grades how much the classifier trusts its own output. Only
// high and medium confidence results are eligible for auto-filing.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Method records which path produced a classification.
type Method string

const (
	MethodSemantic  Method = "semantic"
	MethodHeuristic Method = "heuristic"
)

// ClassificationResult is attached to a candidate exactly once. Severity and
// virality are always clamped to [1,10].
type ClassificationResult struct {
	Category      Category
	Severity      int
	Virality      int
	Confidence    Confidence
	Method        Method
	MatchedTarget string
	Rationale     string
}

// Eligible reports whether the result clears the confidence bar for
// automatic filing.
func (c ClassificationResult) Eligible() bool {
	return c.Confidence == ConfidenceHigh || c.Confidence == ConfidenceMedium
}

// ClampScore forces a severity/virality value into the valid [1,10] range.
func ClampScore(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}
