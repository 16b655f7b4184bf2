package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrier_RetryableSucceedsAfterFailures(t *testing.T) {
	r := New(
		WithMaxAttempts(5),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(2*time.Millisecond),
		WithJitter(0),
	)

	attempts := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return Retryable(errors.New("connection refused"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetrier_ExhaustedAttemptsReturnCause(t *testing.T) {
	r := New(
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithJitter(0),
	)

	cause := errors.New("connection refused")
	attempts := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Retryable(cause)
	})

	assert.Equal(t, 3, attempts)
	assert.Equal(t, cause, err)
}

func TestRetrier_PermanentStopsImmediately(t *testing.T) {
	r := New(WithMaxAttempts(5), WithInitialDelay(time.Millisecond))

	cause := errors.New("bad credentials")
	attempts := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Permanent(cause)
	})

	assert.Equal(t, 1, attempts)
	assert.Equal(t, cause, err)
}

func TestRetrier_UnmarkedErrorNotRetried(t *testing.T) {
	r := New(WithMaxAttempts(5), WithInitialDelay(time.Millisecond))

	attempts := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("plain failure")
	})

	assert.Equal(t, 1, attempts)
	assert.EqualError(t, err, "plain failure")
}

func TestRetrier_DelayCappedByMaxDelay(t *testing.T) {
	r := New(
		WithInitialDelay(10*time.Millisecond),
		WithMaxDelay(25*time.Millisecond),
		WithMultiplier(10),
		WithJitter(0),
	)

	assert.Equal(t, 10*time.Millisecond, r.delay(1))
	assert.Equal(t, 25*time.Millisecond, r.delay(2))
	assert.Equal(t, 25*time.Millisecond, r.delay(5))
}

func TestRetrier_CancelledContextStopsRetries(t *testing.T) {
	r := New(WithMaxAttempts(10), WithInitialDelay(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := r.Do(ctx, func(ctx context.Context) error {
		attempts++
		cancel()
		return Retryable(errors.New("connection refused"))
	})

	assert.Equal(t, 1, attempts)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}
