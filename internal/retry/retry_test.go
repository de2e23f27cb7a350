package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/product-detector/internal/retry"
)

type statusErr struct{ code int }

func (e statusErr) Error() string { return "status" }
func (e statusErr) Retryable() bool { return e.code >= 500 }

func fastConfig(attempts int) retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = attempts
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	return cfg
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	var retried []int
	cfg := fastConfig(5)
	cfg.OnRetry = func(attempt int, _ time.Duration, _ error) { retried = append(retried, attempt) }

	err := retry.Do(context.Background(), cfg, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("read tcp: connection reset by peer")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retry.Do(context.Background(), fastConfig(5), func(context.Context) error {
		calls++
		return statusErr{code: 404}
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, retry.ErrMaxAttemptsExceeded)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retry.Do(context.Background(), fastConfig(3), func(context.Context) error {
		calls++
		return statusErr{code: 503}
	})
	require.ErrorIs(t, err, retry.ErrMaxAttemptsExceeded)
	var se statusErr
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 3, calls)
}

func TestDo_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := retry.Do(ctx, fastConfig(3), func(context.Context) error { return nil })
	require.ErrorIs(t, err, retry.ErrContextCancelled)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDefaultIsRetryable(t *testing.T) {
	t.Parallel()

	assert.False(t, retry.DefaultIsRetryable(nil))
	assert.False(t, retry.DefaultIsRetryable(context.Canceled))
	assert.True(t, retry.DefaultIsRetryable(errors.New("dial tcp: I/O Timeout")))
	assert.False(t, retry.DefaultIsRetryable(errors.New("invalid URL")))
	assert.True(t, retry.DefaultIsRetryable(statusErr{code: 502}))
}

func TestBackoff_Capped(t *testing.T) {
	t.Parallel()

	cfg := retry.Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, cfg.Backoff(1))
	assert.Equal(t, 400*time.Millisecond, cfg.Backoff(3))
	assert.Equal(t, time.Second, cfg.Backoff(10))
}
