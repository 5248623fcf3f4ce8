// Package detect finds PII candidates with several independent detectors
// and merges them into one canonical entity list.
//
// Detectors run concurrently. A detector that fails is dropped for that
// request only; the others still contribute. Detectors whose engine is not
// available are simply left out of the Ensemble at construction.
package detect

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"pii-redaction-pipeline/internal/entity"
	"pii-redaction-pipeline/internal/logger"
)

// Detector maps text to candidate entities. Implementations must be safe for
// concurrent use.
type Detector interface {
	Name() string
	Detect(ctx context.Context, text string) ([]entity.Entity, error)
}

// Result is one ensemble run.
type Result struct {
	Entities   []entity.Entity // merged, first-seen order
	Candidates int             // raw candidates before merge
	Failed     []string        // detectors that errored this run
}

// Ensemble fans text out to its detectors and merges what they return.
type Ensemble struct {
	detectors []Detector
	timeout   time.Duration
	log       *logger.Logger
}

// NewEnsemble returns an Ensemble over detectors. A positive timeout bounds
// each detector call. A nil log discards output.
func NewEnsemble(log *logger.Logger, timeout time.Duration, detectors ...Detector) *Ensemble {
	if log == nil {
		log = logger.Nop()
	}
	return &Ensemble{detectors: detectors, timeout: timeout, log: log}
}

// Names lists the configured detectors in run order.
func (e *Ensemble) Names() []string {
	out := make([]string, len(e.detectors))
	for i, d := range e.detectors {
		out[i] = d.Name()
	}
	return out
}

// Detect runs every detector and merges their candidates. Candidate order,
// and so merge order, follows detector order regardless of which finishes
// first. The only error returned is ctx's.
func (e *Ensemble) Detect(ctx context.Context, text string) (Result, error) {
	found := make([][]entity.Entity, len(e.detectors))
	errs := make([]error, len(e.detectors))

	var g errgroup.Group
	for i, d := range e.detectors {
		g.Go(func() error {
			dctx := ctx
			if e.timeout > 0 {
				var cancel context.CancelFunc
				dctx, cancel = context.WithTimeout(ctx, e.timeout)
				defer cancel()
			}
			start := time.Now()
			found[i], errs[i] = d.Detect(dctx, text)
			e.log.Debugf("detect", "%s: %d candidates in %s", d.Name(), len(found[i]), time.Since(start).Round(time.Millisecond))
			return nil
		})
	}
	g.Wait() //nolint:errcheck // goroutines report through errs

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var (
		res Result
		all []entity.Entity
	)
	for i, d := range e.detectors {
		if errs[i] != nil {
			e.log.Warnf("detect", "%s detector failed, dropping its candidates: %v", d.Name(), errs[i])
			res.Failed = append(res.Failed, d.Name())
			continue
		}
		all = append(all, found[i]...)
	}
	res.Candidates = len(all)
	res.Entities = entity.Merge(all)
	return res, nil
}
