// Package textutil holds the pure string-rewriting primitives shared by the
// masking and name-replacement stages: boundary-guarded multi-token
// replacement, stable alias derivation, one-way masking and a small
// offset-preserving tokenizer.
package textutil

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/coregx/ahocorasick"
)

// span is one accepted match of a replacement key in the source text.
type span struct {
	start, end int
	key        int
}

// MultiReplace rewrites every boundary-respecting occurrence of each key in
// replacements with its value, longest key first, in a single pass over text.
// Replacement values are never rescanned, so the result does not depend on
// map iteration order and a value that contains another key is left alone.
func MultiReplace(text string, replacements map[string]string) string {
	if text == "" || len(replacements) == 0 {
		return text
	}

	keys := make([]string, 0, len(replacements))
	for k := range replacements {
		if k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return text
	}
	sort.Strings(keys)

	spans := selectSpans(text, keys, findAll(text, keys))
	if len(spans) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, s := range spans {
		b.WriteString(text[last:s.start])
		b.WriteString(replacements[keys[s.key]])
		last = s.end
	}
	b.WriteString(text[last:])
	return b.String()
}

// ContainsToken reports whether value occurs in text as a whole token under
// the same boundary rule MultiReplace uses.
func ContainsToken(text, value string) bool {
	if value == "" {
		return false
	}
	for off := 0; off <= len(text)-len(value); {
		i := strings.Index(text[off:], value)
		if i < 0 {
			return false
		}
		start := off + i
		if bounded(text, start, start+len(value)) {
			return true
		}
		_, w := utf8.DecodeRuneInString(text[start:])
		off = start + w
	}
	return false
}

// findAll returns every occurrence of every key, overlapping included.
func findAll(text string, keys []string) []span {
	ac, err := ahocorasick.NewBuilder().AddStrings(keys).Build()
	if err != nil {
		return scan(text, keys)
	}
	matches := ac.FindAllOverlapping([]byte(text))
	out := make([]span, 0, len(matches))
	for _, m := range matches {
		out = append(out, span{start: m.Start, end: m.End, key: m.PatternID})
	}
	return out
}

// scan is the automaton-free fallback used if the automaton cannot be built.
func scan(text string, keys []string) []span {
	var out []span
	for ki, k := range keys {
		for off := 0; off <= len(text)-len(k); {
			i := strings.Index(text[off:], k)
			if i < 0 {
				break
			}
			out = append(out, span{start: off + i, end: off + i + len(k), key: ki})
			off += i + 1
		}
	}
	return out
}

// selectSpans keeps boundary-respecting matches, longest first, dropping any
// that overlap an already accepted match. The result is ordered by position.
func selectSpans(text string, keys []string, cands []span) []span {
	valid := cands[:0]
	for _, c := range cands {
		if c.end-c.start != len(keys[c.key]) || text[c.start:c.end] != keys[c.key] {
			continue
		}
		if bounded(text, c.start, c.end) {
			valid = append(valid, c)
		}
	}
	sort.Slice(valid, func(i, j int) bool {
		li, lj := valid[i].end-valid[i].start, valid[j].end-valid[j].start
		if li != lj {
			return li > lj
		}
		return valid[i].start < valid[j].start
	})

	taken := make([]bool, len(text))
	accepted := make([]span, 0, len(valid))
	for _, c := range valid {
		free := true
		for i := c.start; i < c.end; i++ {
			if taken[i] {
				free = false
				break
			}
		}
		if !free {
			continue
		}
		for i := c.start; i < c.end; i++ {
			taken[i] = true
		}
		accepted = append(accepted, c)
	}
	sort.Slice(accepted, func(i, j int) bool { return accepted[i].start < accepted[j].start })
	return accepted
}

// bounded reports whether text[start:end] does not extend a word on either
// side. The check applies only at edges where the match itself begins or ends
// with a word rune, so values such as "Acme Corp." or "+1-555" still match.
func bounded(text string, start, end int) bool {
	if start > 0 {
		first, _ := utf8.DecodeRuneInString(text[start:end])
		prev, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(first) && isWordRune(prev) {
			return false
		}
	}
	if end < len(text) {
		last, _ := utf8.DecodeLastRuneInString(text[start:end])
		next, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(last) && isWordRune(next) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
