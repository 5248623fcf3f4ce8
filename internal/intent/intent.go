// Package intent decides whether a request is a lookup ("search") or an
// analytical question ("reasoning") by majority vote over several
// classification strategies.
package intent

import (
	"context"
	"errors"
	"fmt"
)

// Intent is the classification outcome.
type Intent string

const (
	Unset     Intent = ""
	Search    Intent = "search"
	Reasoning Intent = "reasoning"
)

// Valid reports whether i is Search or Reasoning.
func (i Intent) Valid() bool { return i == Search || i == Reasoning }

// Parse converts s to an Intent.
func Parse(s string) (Intent, error) {
	switch i := Intent(s); i {
	case Search, Reasoning:
		return i, nil
	}
	return Unset, fmt.Errorf("intent: unknown label %q", s)
}

// ErrNoLabel is returned when a strategy could not produce a label.
var ErrNoLabel = errors.New("intent: no label")

// Strategy classifies text. A non-nil error means the strategy abstains.
// Implementations must be safe for concurrent use.
type Strategy interface {
	Name() string
	Classify(ctx context.Context, text string) (Intent, error)
}

// Fallback runs Primary and, if it abstains, answers with Secondary.
type Fallback struct {
	Primary   Strategy
	Secondary Strategy
}

// OrElse composes primary with a fallback strategy.
func OrElse(primary, secondary Strategy) *Fallback {
	return &Fallback{Primary: primary, Secondary: secondary}
}

// Name implements Strategy.
func (f *Fallback) Name() string { return f.Primary.Name() }

// Classify implements Strategy.
func (f *Fallback) Classify(ctx context.Context, text string) (Intent, error) {
	i, _, err := f.classify(ctx, text)
	return i, err
}

// classify also returns why the primary abstained, nil if it answered.
func (f *Fallback) classify(ctx context.Context, text string) (i Intent, primaryErr, err error) {
	i, primaryErr = f.Primary.Classify(ctx, text)
	if primaryErr == nil && i.Valid() {
		return i, nil, nil
	}
	if primaryErr == nil {
		primaryErr = ErrNoLabel
	}
	i, err = f.Secondary.Classify(ctx, text)
	return i, primaryErr, err
}
