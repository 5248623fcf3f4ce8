package intent

import (
	"context"

	"golang.org/x/sync/errgroup"

	"pii-redaction-pipeline/internal/logger"
)

// Vote is one strategy's contribution to a decision.
type Vote struct {
	Strategy string `json:"strategy"`
	Intent   Intent `json:"intent"`
	// FellBack is set when the strategy's own engine abstained and the
	// keyword answer was used in its place.
	FellBack bool `json:"fellBack,omitempty"`
}

// Decision is the outcome of one ensemble run.
type Decision struct {
	Intent    Intent `json:"intent"`
	Search    int    `json:"search"`
	Reasoning int    `json:"reasoning"`
	Tie       bool   `json:"tie,omitempty"`
	Votes     []Vote `json:"votes"`
}

// Classifier runs the keyword strategy plus any optional strategies and
// takes a majority vote. Optional strategies that abstain fall back to the
// keyword answer; a strategy that still fails casts no vote.
type Classifier struct {
	keyword  Strategy
	optional []*Fallback
	log      *logger.Logger
}

// NewClassifier builds a Classifier. Each optional strategy is composed with
// the keyword strategy via OrElse. Unavailable strategies should simply not
// be passed. A nil log discards output.
func NewClassifier(log *logger.Logger, optional ...Strategy) *Classifier {
	if log == nil {
		log = logger.Nop()
	}
	kw := Keyword{}
	c := &Classifier{keyword: kw, log: log}
	for _, s := range optional {
		c.optional = append(c.optional, OrElse(s, kw))
	}
	return c
}

// Strategies lists the strategy names in vote order.
func (c *Classifier) Strategies() []string {
	names := make([]string, 0, len(c.optional)+1)
	for _, s := range c.optional {
		names = append(names, s.Name())
	}
	return append(names, c.keyword.Name())
}

// Classify decides the intent of text. It never fails: with no votes at all
// the result is Search.
func (c *Classifier) Classify(ctx context.Context, text string) Decision {
	type result struct {
		vote Vote
		ok   bool
	}
	results := make([]result, len(c.optional))

	var g errgroup.Group
	for i, s := range c.optional {
		g.Go(func() error {
			in, primaryErr, err := s.classify(ctx, text)
			if err != nil || !in.Valid() {
				c.log.Warnf("classify", "%s strategy abstained: %v", s.Name(), err)
				return nil
			}
			if primaryErr != nil {
				c.log.Warnf("classify", "%s strategy failed, using keyword answer: %v", s.Name(), primaryErr)
			}
			results[i] = result{vote: Vote{Strategy: s.Name(), Intent: in, FellBack: primaryErr != nil}, ok: true}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // goroutines never return errors

	var d Decision
	for _, r := range results {
		if r.ok {
			d.Votes = append(d.Votes, r.vote)
		}
	}

	keyword, err := c.keyword.Classify(ctx, text)
	if err == nil && keyword.Valid() {
		d.Votes = append(d.Votes, Vote{Strategy: c.keyword.Name(), Intent: keyword})
	} else {
		keyword = Unset
	}

	for _, v := range d.Votes {
		if v.Intent == Search {
			d.Search++
		} else {
			d.Reasoning++
		}
	}

	switch {
	case len(d.Votes) == 0:
		d.Intent = Search
		c.log.Warn("classify", "no strategy produced a vote, defaulting to search")
	case d.Search == d.Reasoning:
		d.Tie = true
		d.Intent = keyword
		if d.Intent == Unset {
			d.Intent = Search
		}
	case d.Search > d.Reasoning:
		d.Intent = Search
	default:
		d.Intent = Reasoning
	}
	c.log.Debugf("classify", "intent=%s search=%d reasoning=%d", d.Intent, d.Search, d.Reasoning)
	return d
}

// FallbackCount reports how many votes came from a fallback.
func (d Decision) FallbackCount() int {
	n := 0
	for _, v := range d.Votes {
		if v.FellBack {
			n++
		}
	}
	return n
}
