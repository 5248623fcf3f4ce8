package detect

import (
	"context"
	"strings"

	"pii-redaction-pipeline/internal/engine"
	"pii-redaction-pipeline/internal/engine/tagger"
	"pii-redaction-pipeline/internal/entity"
	"pii-redaction-pipeline/internal/textutil"
)

// TagMap maps tagger-native labels to canonical types. Labels not listed
// are dropped.
var TagMap = map[string]entity.Type{
	"PERSON":   entity.PersonName,
	"ORG":      entity.CompanyName,
	"GPE":      entity.Location,
	"LOC":      entity.Location,
	"DATE":     entity.Date,
	"TIME":     entity.Time,
	"MONEY":    entity.Financial,
	"CARDINAL": entity.Number,
	"ORDINAL":  entity.Number,
	"QUANTITY": entity.Quantity,
	"PRODUCT":  entity.Product,
	"EMAIL":    entity.Email,
	"PHONE":    entity.Phone,
	"URL":      entity.URL,
}

// NER runs a named-entity tagger and adds token heuristics for emails and
// card numbers the tagger tends to miss.
type NER struct {
	tagger tagger.Tagger
	limit  *engine.Limiter
}

// NewNER wraps t. limit may be nil.
func NewNER(t tagger.Tagger, limit *engine.Limiter) *NER {
	return &NER{tagger: t, limit: limit}
}

// Name implements Detector.
func (n *NER) Name() string { return "ner" }

// Detect implements Detector.
func (n *NER) Detect(ctx context.Context, text string) ([]entity.Entity, error) {
	release, err := n.limit.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	spans, err := n.tagger.Tag(ctx, text)
	release()
	if err != nil {
		return nil, err
	}

	var found []entity.Entity
	for _, s := range spans {
		if t, ok := TagMap[s.Label]; ok && s.Text != "" {
			found = append(found, entity.Entity{Type: t, Value: s.Text})
		}
	}
	return append(found, tokenHeuristics(text)...), nil
}

// tokenHeuristics flags email-like tokens, long digit tokens, and runs of up
// to four digit tokens that add up to a card-number length.
func tokenHeuristics(text string) []entity.Entity {
	var found []entity.Entity
	toks := textutil.Tokenize(text)

	for _, tk := range toks {
		if at := strings.IndexByte(tk.Text, '@'); at >= 0 && strings.Contains(tk.Text[at+1:], ".") {
			found = append(found, entity.Entity{Type: entity.Email, Value: tk.Text})
		}
	}

	for i, tk := range toks {
		if !textutil.IsDigits(tk.Text) {
			continue
		}
		if isCardLength(len(tk.Text)) {
			found = append(found, entity.Entity{Type: entity.CreditCard, Value: tk.Text})
		}

		digits, last := len(tk.Text), i
		for j := i + 1; j < len(toks) && j < i+4; j++ {
			if !textutil.IsDigits(toks[j].Text) || strings.TrimSpace(text[toks[j-1].End:toks[j].Start]) != "" {
				break
			}
			digits += len(toks[j].Text)
			last = j
		}
		if last > i && isCardLength(digits) {
			found = append(found, entity.Entity{Type: entity.CreditCard, Value: text[tk.Start:toks[last].End]})
		}
	}
	return found
}

func isCardLength(n int) bool { return n >= 13 && n <= 19 }
