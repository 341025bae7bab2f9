package dedup

import "strings"

// Relevance reason codes.
const (
	ReasonJunkKeyword  = "junk_keyword"
	ReasonNoIndicator  = "no_indicator"
	ReasonIndicator    = "domain_indicator"
	ReasonOverride     = "severity_override"
	ReasonEmptyContent = "empty_content"
)

// Keywords configures the relevance filter. Junk rejects outright;
// Indicators are required for acceptance unless an Override keyword matches.
type Keywords struct {
	Junk      []string
	Indicator []string
	Override  []string
}

// RelevanceFilter decides whether a raw item is worth keeping at all.
type RelevanceFilter struct {
	keywords Keywords
}

// NewRelevanceFilter copies the keyword tables into an immutable filter.
func NewRelevanceFilter(kw Keywords) *RelevanceFilter {
	return &RelevanceFilter{keywords: kw}
}

// Accept scans the headline and summary. Junk keywords reject; an override
// keyword accepts even without a domain indicator.
func (f *RelevanceFilter) Accept(headline, summary string) (bool, string) {
	text := strings.ToLower(headline + " " + summary)
	if strings.TrimSpace(text) == "" {
		return false, ReasonEmptyContent
	}

	for _, kw := range f.keywords.Junk {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return false, ReasonJunkKeyword
		}
	}
	for _, kw := range f.keywords.Override {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true, ReasonOverride
		}
	}
	for _, kw := range f.keywords.Indicator {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true, ReasonIndicator
		}
	}
	return false, ReasonNoIndicator
}
