package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token is a whitespace-delimited word with surrounding punctuation trimmed.
// Text is always text[Start:End] of the source string.
type Token struct {
	Text       string
	Start, End int
}

const edgePunct = `.,;:!?"'()[]{}<>`

// Tokenize splits text on whitespace and trims edge punctuation from each
// piece. Pieces that are pure punctuation are dropped.
func Tokenize(text string) []Token {
	var toks []Token
	i := 0
	for i < len(text) {
		r, w := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			i += w
			continue
		}
		start := i
		for i < len(text) {
			r, w = utf8.DecodeRuneInString(text[i:])
			if unicode.IsSpace(r) {
				break
			}
			i += w
		}
		end := i
		for start < end && strings.IndexByte(edgePunct, text[start]) >= 0 {
			start++
		}
		for end > start && strings.IndexByte(edgePunct, text[end-1]) >= 0 {
			end--
		}
		if start < end {
			toks = append(toks, Token{Text: text[start:end], Start: start, End: end})
		}
	}
	return toks
}

// IsDigits reports whether s is non-empty and all ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
