package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Blocks(t *testing.T) {
	l := NewLimiter(1)
	release, err := l.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release2, err := l.Acquire(context.Background())
	require.NoError(t, err)
	release2()
}

func TestLimiter_NilUnlimited(t *testing.T) {
	l := NewLimiter(0)
	assert.Nil(t, l)
	for i := 0; i < 3; i++ {
		release, err := l.Acquire(context.Background())
		require.NoError(t, err)
		defer release()
	}
}
