package intent

import (
	"context"
	"strings"
	"unicode/utf8"
)

var (
	searchKeywords    = []string{"find", "lookup", "list", "search", "show", "retrieve", "query"}
	reasoningKeywords = []string{"why", "how", "explain", "compare", "analyse", "analysis", "reason", "evaluate", "calculate"}
)

// LengthThreshold splits ambiguous texts: shorter ones are treated as
// lookups, longer ones as reasoning.
const LengthThreshold = 140

// Keyword matches fixed keyword sets against the lower-cased text. Matching
// is by substring, so "show" also counts for "how". It never abstains.
type Keyword struct{}

// Name implements Strategy.
func (Keyword) Name() string { return "keyword" }

// Classify implements Strategy.
func (Keyword) Classify(_ context.Context, text string) (Intent, error) {
	return KeywordIntent(text), nil
}

// KeywordIntent is the keyword decision as a plain function.
func KeywordIntent(text string) Intent {
	lower := strings.ToLower(text)
	s := containsAny(lower, searchKeywords)
	r := containsAny(lower, reasoningKeywords)
	switch {
	case s && !r:
		return Search
	case r && !s:
		return Reasoning
	case utf8.RuneCountInString(lower) < LengthThreshold:
		return Search
	default:
		return Reasoning
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
