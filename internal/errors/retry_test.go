package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		JitterFactor: 0,
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	result, err := RetryWithResult(context.Background(), fastConfig(), nil, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("connection refused"), "retrying")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := RetryWithResult(context.Background(), fastConfig(), nil, func(context.Context) (int, error) {
		calls++
		return 0, NewPermanentError(errors.New("bad request"), "the request was rejected")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, IsPermanent(err))
}

func TestRetryExhaustsBudget(t *testing.T) {
	calls := 0
	_, err := RetryWithResult(context.Background(), fastConfig(), nil, func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("429"), "rate limited")
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls) // first call plus three retries
	assert.Contains(t, err.Error(), "max retries exceeded")
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := RetryWithResult(ctx, RetryConfig{MaxAttempts: 5, BaseDelay: time.Minute, MaxDelay: time.Minute}, nil, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(errors.New("slow down"), "retrying")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateBackoffGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond}
	assert.Equal(t, 10*time.Millisecond, calculateBackoff(0, cfg))
	assert.Equal(t, 20*time.Millisecond, calculateBackoff(1, cfg))
	assert.Equal(t, 40*time.Millisecond, calculateBackoff(2, cfg))
	assert.Equal(t, 50*time.Millisecond, calculateBackoff(3, cfg))
	assert.Equal(t, 50*time.Millisecond, calculateBackoff(10, cfg))
}

func TestCalculateBackoffJitterStaysBounded(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second, JitterFactor: 0.25}
	for i := 0; i < 100; i++ {
		d := calculateBackoff(1, cfg)
		assert.GreaterOrEqual(t, d, 15*time.Millisecond)
		assert.LessOrEqual(t, d, 25*time.Millisecond)
	}
}

func TestRetryWrapperPropagatesError(t *testing.T) {
	sentinel := errors.New("nope")
	err := Retry(context.Background(), fastConfig(), nil, func(context.Context) error {
		return NewPermanentError(sentinel, "not retryable")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
}
