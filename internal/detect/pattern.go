package detect

import (
	"context"
	"regexp"
	"strings"

	"pii-redaction-pipeline/internal/entity"
)

type pattern struct {
	re  *regexp.Regexp
	typ entity.Type
}

var patternSpecs = []struct {
	expr string
	typ  entity.Type
}{
	{`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, entity.Email},
	{`\b(?:\+?\d{1,3})?[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`, entity.Phone},
	{`\b(?:\d{1,3}\.){3}\d{1,3}\b`, entity.IP},
	{`\b\d{3}-\d{2}-\d{4}\b`, entity.SSN},
	{`\b(?:\d[ -]*?){13,16}\b`, entity.CreditCard},
	{`(?i)\b\d{1,5}\s+\w+(?:\s+\w+){0,4}\s(?:Street|St|Road|Rd|Avenue|Ave|Blvd|Lane|Ln|Way)\b`, entity.Address},
}

const leadingSeparators = "-. \t\r\n"

// Pattern matches a fixed table of regular expressions. Every match is one
// candidate; duplicates are left for the merge step.
type Pattern struct {
	patterns []pattern
}

// NewPattern compiles the pattern table.
func NewPattern() *Pattern {
	p := &Pattern{}
	for _, s := range patternSpecs {
		p.patterns = append(p.patterns, pattern{re: regexp.MustCompile(s.expr), typ: s.typ})
	}
	return p
}

// Name implements Detector.
func (p *Pattern) Name() string { return "pattern" }

// Detect implements Detector.
func (p *Pattern) Detect(ctx context.Context, text string) ([]entity.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var found []entity.Entity
	for _, pt := range p.patterns {
		for _, m := range pt.re.FindAllString(text, -1) {
			// The phone pattern's optional separator can capture the gap
			// before the number.
			if v := strings.TrimLeft(m, leadingSeparators); v != "" {
				found = append(found, entity.Entity{Type: pt.typ, Value: v})
			}
		}
	}
	return found, nil
}
