package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"pii-redaction-pipeline/internal/audit"
	"pii-redaction-pipeline/internal/entity"
	"pii-redaction-pipeline/internal/intent"
	"pii-redaction-pipeline/internal/textutil"
)

// maxRedraws bounds how often a colliding pseudonym is redrawn.
const maxRedraws = 16

// Summary is written to Context.Metadata["audit"].
type Summary struct {
	Intent         intent.Intent   `json:"intent"`
	PIIDiscovered  int             `json:"pii_discovered"`
	MaskedEntities []entity.Entity `json:"masked_entities"`
	NameMapping    *Mapping        `json:"name_mapping"`
}

func (p *Pipeline) resolve(ctx context.Context, pc *Context) error {
	resolved, err := p.resolver.Resolve(ctx, pc.Original())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCoreference, err)
	}
	pc.Resolved = resolved
	pc.Processed = resolved
	return nil
}

// classify votes on the original text, not the resolved one.
func (p *Pipeline) classify(ctx context.Context, pc *Context) error {
	d := p.classifier.Classify(ctx, pc.Original())
	if !d.Intent.Valid() {
		d.Intent = intent.Search
	}
	pc.Decision = d
	p.metrics.RecordIntent(string(d.Intent), d.Tie)
	p.metrics.ClassifierFallbacks.Add(int64(d.FallbackCount()))
	p.log.Debugf("intent", "%s: %s (search=%d reasoning=%d)", pc.ID, d.Intent, d.Search, d.Reasoning)
	return nil
}

func (p *Pipeline) detect(ctx context.Context, pc *Context) error {
	start := time.Now()
	res, err := p.detector.Detect(ctx, pc.Processed)
	if err != nil {
		return err
	}
	p.metrics.RecordDetectLatency(time.Since(start))

	pc.Entities = res.Entities
	pc.Failed = res.Failed
	p.metrics.RecordEntities(res.Entities)
	for _, name := range res.Failed {
		p.metrics.RecordDetectorFailure(name)
	}
	p.log.Debugf("detect", "%s: %d candidates merged to %d entities", pc.ID, res.Candidates, len(res.Entities))
	return nil
}

// exempt reports whether e is left for name replacement instead of being
// masked. Names are only exempt under reasoning intent; search requests get
// them masked like any other PII.
func exempt(pc *Context, e entity.Entity) bool {
	return e.Type.Immune() && pc.Intent() == intent.Reasoning
}

// mask replaces every non-exempt entity with its type placeholder.
func (p *Pipeline) mask(_ context.Context, pc *Context) error {
	masks := make(map[string]string)
	for _, e := range pc.Entities {
		if exempt(pc, e) {
			continue
		}
		if _, ok := masks[e.Value]; ok {
			continue
		}
		masks[e.Value] = e.Type.Placeholder()
		p.log.Debugf("mask", "%s: %s -> %s", pc.ID, textutil.HashMask(e.Value), e.Type.Placeholder())
	}

	out := textutil.MultiReplace(pc.Processed, masks)
	out, swept := sweep(out, masks)
	if swept > 0 {
		p.log.Warnf("mask", "%s: %d values only occurred inside longer tokens, masked without boundary check", pc.ID, swept)
	}
	pc.Processed = out
	pc.Masked = len(masks)
	return nil
}

// sweep replaces any mask key still present in text, ignoring word
// boundaries, longest key first. It returns how many keys it had to sweep.
func sweep(text string, masks map[string]string) (string, int) {
	var left []string
	for v := range masks {
		if v != "" && strings.Contains(text, v) {
			left = append(left, v)
		}
	}
	if len(left) == 0 {
		return text, 0
	}
	sort.Slice(left, func(i, j int) bool {
		if len(left[i]) != len(left[j]) {
			return len(left[i]) > len(left[j])
		}
		return left[i] < left[j]
	})
	pairs := make([]string, 0, 2*len(left))
	for _, v := range left {
		pairs = append(pairs, v, masks[v])
	}
	return strings.NewReplacer(pairs...).Replace(text), len(left)
}

// replaceNames swaps each distinct person or company name for a pseudonym.
// Only pairs whose pseudonym made it into the output enter the mapping. A name
// that keeps drawing colliding pseudonyms is masked with its placeholder.
func (p *Pipeline) replaceNames(_ context.Context, pc *Context) error {
	var names, masked []string
	for _, e := range pc.Entities {
		if exempt(pc, e) {
			names = append(names, e.Value)
		} else {
			masked = append(masked, e.Value)
		}
	}

	aliases := make(map[string]string)
	drawn := make(map[string]bool)
	var order []string
	for _, e := range pc.Entities {
		var draw func() string
		switch e.Type {
		case entity.PersonName:
			draw = p.names.Person
		case entity.CompanyName:
			draw = p.names.Company
		default:
			continue
		}
		if _, ok := aliases[e.Value]; ok || e.Value == "" || !strings.Contains(pc.Processed, e.Value) {
			continue
		}
		alias := draw()
		for i := 0; i < maxRedraws && collides(alias, drawn, names, masked); i++ {
			alias = draw()
		}
		if collides(alias, drawn, names, masked) {
			p.log.Warnf("names", "%s: no usable alias after %d draws, masking %s", pc.ID, maxRedraws, textutil.HashMask(e.Value))
			aliases[e.Value] = e.Type.Placeholder()
			continue
		}
		drawn[alias] = true
		aliases[e.Value] = alias
		order = append(order, e.Value)
	}

	out := textutil.MultiReplace(pc.Processed, aliases)
	out, swept := sweep(out, aliases)
	if swept > 0 {
		p.log.Warnf("names", "%s: %d names only occurred inside longer tokens, replaced without boundary check", pc.ID, swept)
	}
	pc.Processed = out
	for _, v := range order {
		if strings.Contains(pc.Processed, aliases[v]) {
			pc.Mapping.Set(v, aliases[v])
		}
	}
	p.metrics.Replacements.Add(int64(pc.Mapping.Len()))
	p.log.Debugf("names", "%s: replaced %d names with aliases", pc.ID, pc.Mapping.Len())
	return nil
}

// collides reports whether alias was already issued this run or contains one
// of the run's names or masked values anywhere, which would put that value
// back into the output.
func collides(alias string, drawn map[string]bool, names, masked []string) bool {
	if drawn[alias] {
		return true
	}
	for _, set := range [][]string{names, masked} {
		for _, v := range set {
			if v != "" && strings.Contains(alias, v) {
				return true
			}
		}
	}
	return false
}

// record writes the audit summary and persists the count-only record.
func (p *Pipeline) record(ctx context.Context, pc *Context) error {
	masked := make([]entity.Entity, 0, len(pc.Entities))
	for _, e := range pc.Entities {
		if !e.Type.Immune() {
			masked = append(masked, e)
		}
	}
	pc.Metadata["audit"] = Summary{
		Intent:         pc.Intent(),
		PIIDiscovered:  len(pc.Entities),
		MaskedEntities: masked,
		NameMapping:    pc.Mapping,
	}

	counts := make(map[string]int)
	for t, n := range entity.CountByType(pc.Entities) {
		counts[string(t)] = n
	}
	rec := audit.Record{
		ID:           pc.ID,
		Time:         time.Now().UTC(),
		InputRef:     textutil.KeyedRef(p.refKey, pc.Original(), "REQ"),
		Intent:       string(pc.Intent()),
		PIICount:     len(pc.Entities),
		TypeCounts:   counts,
		Masked:       pc.Masked,
		Replacements: pc.Mapping.Len(),
		Failed:       pc.Failed,
		DurationMs:   time.Since(pc.started).Milliseconds(),
	}
	if err := p.audit.Write(ctx, rec); err != nil {
		p.log.Warnf("audit", "%s: audit record not persisted: %v", pc.ID, err)
	}

	p.log.Infof("audit", "%s: intent=%s pii=%d masked=%d replacements=%d",
		pc.ID, pc.Intent(), len(pc.Entities), pc.Masked, pc.Mapping.Len())
	return nil
}
