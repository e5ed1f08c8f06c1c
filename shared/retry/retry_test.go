package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff(t *testing.T) {
	p := Policy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, BackoffMultiplier: 2}

	assert.Equal(t, 100*time.Millisecond, p.Backoff(0))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 800*time.Millisecond, p.Backoff(3))
	assert.Equal(t, time.Second, p.Backoff(10))
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, BackoffMultiplier: 1}
	calls := 0

	err := Do(context.Background(), p, nil, func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 2 {
			return errors.New("flaky")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	p := Policy{MaxAttempts: 5, InitialBackoff: time.Millisecond}
	calls := 0

	err := Do(context.Background(), p, func(err error) bool { return !errors.Is(err, fatal) },
		func(ctx context.Context, attempt int) error {
			calls++
			return fatal
		})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestDoExhausted(t *testing.T) {
	p := Policy{MaxAttempts: 2, InitialBackoff: time.Millisecond}
	calls := 0

	err := Do(context.Background(), p, nil, func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("still down")
	})

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Contains(t, err.Error(), "still down")
	assert.Equal(t, 3, calls)
}

func TestSleepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
