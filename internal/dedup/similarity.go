package dedup

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// normalizeTokens lowercases, strips punctuation, and returns the sorted
// word set, making the comparison order-independent.
func normalizeTokens(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	tokens := strings.Fields(b.String())
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// Similarity scores two headlines in [0,100]: 100 for identical token sets,
// 0 for nothing in common. Case and word order do not matter.
func Similarity(a, b string) int {
	na, nb := normalizeTokens(a), normalizeTokens(b)
	if na == "" && nb == "" {
		return 100
	}
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 100
	}

	dist := levenshtein.ComputeDistance(na, nb)
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	return (longest - dist) * 100 / longest
}
