package engine

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter caps in-flight calls to one external engine. A nil *Limiter
// admits everything.
type Limiter struct {
	sem *semaphore.Weighted
}

// NewLimiter returns a Limiter admitting n concurrent calls. n <= 0 means
// unlimited.
func NewLimiter(n int) *Limiter {
	if n <= 0 {
		return nil
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n))}
}

// Acquire blocks until a slot is free or ctx is done. The returned func
// releases the slot.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	if l == nil {
		return func() {}, ctx.Err()
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { l.sem.Release(1) }, nil
}
