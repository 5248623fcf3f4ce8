package detect

import (
	"context"
	"sort"

	"pii-redaction-pipeline/internal/engine"
	"pii-redaction-pipeline/internal/engine/presidio"
	"pii-redaction-pipeline/internal/entity"
)

// PresidioMap maps Presidio entity types to canonical types. Its key set is
// the allow-list sent to the analyzer.
var PresidioMap = map[string]entity.Type{
	"PERSON":            entity.PersonName,
	"PHONE_NUMBER":      entity.Phone,
	"EMAIL_ADDRESS":     entity.Email,
	"CREDIT_CARD":       entity.CreditCard,
	"IBAN_CODE":         entity.Financial,
	"IP_ADDRESS":        entity.IP,
	"LOCATION":          entity.Location,
	"US_SSN":            entity.SSN,
	"US_DRIVER_LICENSE": entity.IDNumber,
	"US_PASSPORT":       entity.IDNumber,
	"US_BANK_NUMBER":    entity.Financial,
	"CRYPTO":            entity.Financial,
	"UK_NHS":            entity.IDNumber,
	"NRP":               entity.IDNumber,
	"DATE_TIME":         entity.Date,
	"URL":               entity.URL,
	"ORGANIZATION":      entity.CompanyName,
	"ADDRESS":           entity.Address,
}

// DefaultMinConfidence is the analyzer score below which findings are dropped.
const DefaultMinConfidence = 0.7

// PII runs a dedicated PII analyzer. The score only gates emission; it is not
// carried on the entity.
type PII struct {
	analyzer presidio.Analyzer
	minScore float64
	allow    []string
	limit    *engine.Limiter
}

// NewPII wraps a. minScore <= 0 uses DefaultMinConfidence. limit may be nil.
func NewPII(a presidio.Analyzer, minScore float64, limit *engine.Limiter) *PII {
	if minScore <= 0 {
		minScore = DefaultMinConfidence
	}
	allow := make([]string, 0, len(PresidioMap))
	for k := range PresidioMap {
		allow = append(allow, k)
	}
	sort.Strings(allow)
	return &PII{analyzer: a, minScore: minScore, allow: allow, limit: limit}
}

// Name implements Detector.
func (p *PII) Name() string { return "pii" }

// Detect implements Detector.
func (p *PII) Detect(ctx context.Context, text string) ([]entity.Entity, error) {
	release, err := p.limit.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	results, err := p.analyzer.Analyze(ctx, text, p.allow, p.minScore)
	release()
	if err != nil {
		return nil, err
	}

	var found []entity.Entity
	for _, r := range results {
		t, ok := PresidioMap[r.EntityType]
		if !ok || r.Score < p.minScore {
			continue
		}
		if r.Start < 0 || r.End > len(text) || r.Start >= r.End {
			continue
		}
		found = append(found, entity.Entity{Type: t, Value: text[r.Start:r.End]})
	}
	return found, nil
}
