// Package pipeline runs the redaction stages over one request:
//
//	coreference -> intent -> detection -> masking -> (name replacement) -> audit
//
// Each stage reads and rewrites a shared Context. Name replacement runs only
// for reasoning intent. Any stage error aborts the run; nothing is retried or
// rolled back, and the failed Context must not be reused.
package pipeline

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"pii-redaction-pipeline/internal/audit"
	"pii-redaction-pipeline/internal/detect"
	"pii-redaction-pipeline/internal/engine/coref"
	"pii-redaction-pipeline/internal/intent"
	"pii-redaction-pipeline/internal/logger"
	"pii-redaction-pipeline/internal/metrics"
)

// Classifier decides the intent of a text. *intent.Classifier satisfies it.
type Classifier interface {
	Classify(ctx context.Context, text string) intent.Decision
}

// Detector finds and merges entities. *detect.Ensemble satisfies it.
type Detector interface {
	Detect(ctx context.Context, text string) (detect.Result, error)
}

// Config wires a Pipeline. Nil collaborators get working defaults: the
// passthrough resolver, a keyword-only classifier, the pattern detector,
// random names, no audit store and fresh metrics.
type Config struct {
	Resolver   coref.Resolver
	Classifier Classifier
	Detector   Detector
	Names      NameGenerator
	Audit      audit.Store
	Metrics    *metrics.Metrics
	Log        *logger.Logger
	// Timeout bounds one run. Zero means only the caller's context applies.
	Timeout time.Duration
	// RefKey keys the audit InputRef HMAC. Empty means a random per-process
	// key, so refs only correlate within one process lifetime.
	RefKey []byte
}

type stage struct {
	name   string
	target State
	run    func(ctx context.Context, pc *Context) error
	// when gates conditional stages; nil means always run.
	when func(pc *Context) bool
}

// Pipeline is safe for concurrent use once built; all per-request state lives
// in the Context.
type Pipeline struct {
	resolver   coref.Resolver
	classifier Classifier
	detector   Detector
	names      NameGenerator
	audit      audit.Store
	metrics    *metrics.Metrics
	log        *logger.Logger
	timeout    time.Duration
	refKey     []byte

	stages []stage
}

// New builds a Pipeline from cfg.
func New(cfg Config) *Pipeline {
	p := &Pipeline{
		resolver:   cfg.Resolver,
		classifier: cfg.Classifier,
		detector:   cfg.Detector,
		names:      cfg.Names,
		audit:      cfg.Audit,
		metrics:    cfg.Metrics,
		log:        cfg.Log,
		timeout:    cfg.Timeout,
		refKey:     cfg.RefKey,
	}
	if p.log == nil {
		p.log = logger.Nop()
	}
	if p.resolver == nil {
		p.resolver = coref.Passthrough{}
	}
	if p.classifier == nil {
		p.classifier = intent.NewClassifier(p.log.With("INTENT"))
	}
	if p.detector == nil {
		p.detector = detect.NewEnsemble(p.log.With("DETECT"), 0, detect.NewPattern())
	}
	if p.names == nil {
		p.names = NewRandomNames()
	}
	if p.audit == nil {
		p.audit = audit.Nop{}
	}
	if p.metrics == nil {
		p.metrics = metrics.New()
	}
	if len(p.refKey) == 0 {
		p.refKey = make([]byte, 32)
		rand.Read(p.refKey) //nolint:errcheck // crypto/rand.Read never returns an error
	}

	p.stages = []stage{
		{name: "coreference", target: CorefResolved, run: p.resolve},
		{name: "intent", target: IntentClassified, run: p.classify},
		{name: "detection", target: PIIDetected, run: p.detect},
		{name: "masking", target: Masked, run: p.mask},
		{name: "names", target: NamesReplaced, run: p.replaceNames, when: isReasoning},
		{name: "audit", target: Audited, run: p.record},
	}
	return p
}

// Stages lists the stage names in run order.
func (p *Pipeline) Stages() []string {
	out := make([]string, len(p.stages))
	for i, s := range p.stages {
		out[i] = s.name
	}
	return out
}

// Run processes text in a fresh Context and returns its result.
func (p *Pipeline) Run(ctx context.Context, text string) (Result, error) {
	pc := NewContext(text)
	if err := p.Process(ctx, pc); err != nil {
		return Result{}, err
	}
	return pc.Result(), nil
}

// Process runs every stage over pc. pc must be fresh (state Created). On
// error pc is left in state Failed with its working buffer cleared.
func (p *Pipeline) Process(ctx context.Context, pc *Context) error {
	if pc.State() != Created {
		return ErrContextReused
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	p.metrics.RequestsTotal.Add(1)
	start := time.Now()

	for _, s := range p.stages {
		if s.when != nil && !s.when(pc) {
			p.log.Debugf("run", "%s: skipping %s stage", pc.ID, s.name)
			continue
		}
		if err := ctx.Err(); err != nil {
			return p.fail(pc, s.name, err)
		}
		if err := s.run(ctx, pc); err != nil {
			return p.fail(pc, s.name, err)
		}
		pc.advance(s.target)
	}
	pc.advance(Complete)

	elapsed := time.Since(start)
	p.metrics.RecordPipelineLatency(elapsed)
	p.log.Debugf("run", "%s: complete in %s", pc.ID, elapsed.Round(time.Millisecond))
	return nil
}

func (p *Pipeline) fail(pc *Context, name string, err error) error {
	se := &StageError{Stage: name, State: pc.State(), Err: err}
	pc.Processed = ""
	pc.advance(Failed)

	if errors.Is(err, context.DeadlineExceeded) {
		p.metrics.RequestsTimedOut.Add(1)
	} else {
		p.metrics.RequestsFailed.Add(1)
	}
	p.log.Errorf("run", "%s: %v", pc.ID, se)
	return se
}

func isReasoning(pc *Context) bool { return pc.Intent() == intent.Reasoning }
