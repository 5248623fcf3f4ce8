package tagger

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/orsinium-labs/stopwords"

	"pii-redaction-pipeline/internal/textutil"
)

const months = `January|February|March|April|May|June|July|August|September|October|November|December|` +
	`Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sept|Sep|Oct|Nov|Dec`

var (
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:` + months + `)\.?\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?\b`),
		regexp.MustCompile(`\b\d{1,2}(?:st|nd|rd|th)?\s+(?:` + months + `)\.?(?:,?\s+\d{4})?\b`),
		regexp.MustCompile(`\b(?:` + months + `)\s+\d{4}\b`),
	}
	moneyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d+)?`),
		regexp.MustCompile(`\b\d[\d,]*(?:\.\d+)?\s?(?:USD|EUR|GBP|dollars)\b`),
	}
)

var orgSuffixes = map[string]bool{
	"Corp": true, "Corporation": true, "Inc": true, "Incorporated": true,
	"Ltd": true, "Limited": true, "LLC": true, "LLP": true, "PLC": true,
	"GmbH": true, "AG": true, "SA": true, "Co": true, "Company": true,
	"Group": true, "Holdings": true, "Technologies": true, "Labs": true,
	"Bank": true, "Partners": true, "Systems": true, "Industries": true,
}

// Sentence-leading verbs that are capitalised only because they start an
// imperative.
var imperatives = map[string]bool{
	"find": true, "search": true, "query": true, "retrieve": true, "list": true,
	"show": true, "get": true, "explain": true, "analyze": true, "analyse": true,
	"compare": true, "evaluate": true, "calculate": true, "determine": true,
	"contact": true, "call": true, "email": true, "ask": true, "tell": true,
	"send": true, "pay": true, "meet": true, "look": true, "check": true, "give": true,
}

// Rules is a dependency-free tagger. It recognises capitalised name runs,
// month-name dates, currency amounts and bare numbers, emitting the same
// native labels a statistical tagger would.
type Rules struct {
	stop *stopwords.Stopwords
}

// NewRules returns the rule-based tagger.
func NewRules() *Rules {
	return &Rules{stop: stopwords.MustGet("en")}
}

// Tag implements Tagger.
func (r *Rules) Tag(ctx context.Context, text string) ([]Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spans := r.names(text)
	for _, re := range datePatterns {
		for _, m := range re.FindAllString(text, -1) {
			spans = append(spans, Span{Label: "DATE", Text: m})
		}
	}
	for _, re := range moneyPatterns {
		for _, m := range re.FindAllString(text, -1) {
			spans = append(spans, Span{Label: "MONEY", Text: m})
		}
	}
	for _, tk := range textutil.Tokenize(text) {
		if textutil.IsDigits(tk.Text) {
			spans = append(spans, Span{Label: "CARDINAL", Text: tk.Text})
		}
	}
	return spans, nil
}

// names finds runs of two or more adjacent capitalised words. A run ending
// in a corporate suffix is an ORG, otherwise a PERSON.
func (r *Rules) names(text string) []Span {
	var (
		spans []Span
		run   []textutil.Token
	)
	flush := func() {
		for len(run) > 0 && r.skippable(run[0].Text) {
			run = run[1:]
		}
		for len(run) > 0 && r.stop.Contains(strings.ToLower(run[len(run)-1].Text)) {
			run = run[:len(run)-1]
		}
		if len(run) >= 2 {
			last := run[len(run)-1]
			label := "PERSON"
			if orgSuffixes[last.Text] {
				label = "ORG"
			}
			spans = append(spans, Span{Label: label, Text: text[run[0].Start:last.End]})
		}
		run = run[:0]
	}

	for _, tk := range textutil.Tokenize(text) {
		word, possessive := stripPossessive(tk.Text)
		if !isNameWord(word) {
			flush()
			continue
		}
		if len(run) > 0 && strings.TrimSpace(text[run[len(run)-1].End:tk.Start]) != "" {
			flush()
		}
		tk.Text = word
		tk.End = tk.Start + len(word)
		run = append(run, tk)
		if possessive {
			flush()
		}
	}
	flush()
	return spans
}

func (r *Rules) skippable(word string) bool {
	lw := strings.ToLower(word)
	return r.stop.Contains(lw) || imperatives[lw] || isMonth(word)
}

func isMonth(word string) bool {
	for _, m := range strings.Split(months, "|") {
		if word == m {
			return true
		}
	}
	return false
}

func stripPossessive(w string) (string, bool) {
	for _, suf := range []string{"'s", "’s"} {
		if strings.HasSuffix(w, suf) && len(w) > len(suf) {
			return strings.TrimSuffix(w, suf), true
		}
	}
	return w, false
}

// isNameWord accepts capitalised words like "Smith", "O'Brien", "Mary-Jane".
// All-caps words are accepted only as corporate suffixes.
func isNameWord(w string) bool {
	first, _ := utf8.DecodeRuneInString(w)
	if !unicode.IsUpper(first) {
		return false
	}
	allUpper := true
	for _, c := range w {
		switch {
		case unicode.IsLetter(c):
			if !unicode.IsUpper(c) {
				allUpper = false
			}
		case c == '-' || c == '\'' || c == '.':
		default:
			return false
		}
	}
	if allUpper && utf8.RuneCountInString(w) > 1 {
		return orgSuffixes[w]
	}
	return true
}
