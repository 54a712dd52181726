package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("connection refused")

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	var delays []time.Duration

	err := Do(context.Background(), Fixed(time.Millisecond), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	}, func(attempt int, err error, delay time.Duration) {
		assert.ErrorIs(t, err, errTransient)
		delays = append(delays, delay)
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Millisecond, time.Millisecond}, delays)
}

func TestDoStopsAtMaxAttempts(t *testing.T) {
	calls := 0
	cfg := Config{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: 3 * time.Millisecond}
	var delays []time.Duration

	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return errTransient
	}, func(_ int, _ error, delay time.Duration) {
		delays = append(delays, delay)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, delays)
}

func TestDoNonRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Fixed(time.Millisecond), func(context.Context) error {
		calls++
		return NonRetryable(errTransient)
	}, nil)

	assert.True(t, IsNonRetryable(err))
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
	assert.Nil(t, NonRetryable(nil))
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Do(ctx, Fixed(time.Hour), func(context.Context) error {
		calls++
		return errTransient
	}, func(int, error, time.Duration) {
		cancel()
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestDoRejectsNegativeConfig(t *testing.T) {
	err := Do(context.Background(), Config{InitialDelay: -1}, func(context.Context) error { return nil }, nil)
	assert.Error(t, err)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), Fixed(time.Millisecond), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errTransient
		}
		return "kb registered", nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "kb registered", got)
}
