package retry

import (
	"context"
	"testing"
	"time"

	"github.com/omnigate/omnigate/internal/models"

	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      time.Millisecond,
		AttemptTimeout: time.Second,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), fastPolicy(), "req_test", func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, 1, calls)
}

func TestDoRetriesRetryableErrors(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), fastPolicy(), "req_test", func(ctx context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", models.NewRateLimitError("openai", nil)
		}
		return "recovered", nil
	})
	require.NoError(t, err)
	require.Equal(t, "recovered", result)
	require.Equal(t, 2, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(), "req_test", func(ctx context.Context) (string, error) {
		calls++
		return "", models.NewRateLimitError("openai", nil)
	})

	require.Equal(t, 3, calls)

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, models.ErrorTypeRateLimit, appErr.Type)
	require.Equal(t, 429, appErr.GetStatusCode())
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(), "req_test", func(ctx context.Context) (string, error) {
		calls++
		return "", models.NewAuthenticationError("openai", nil)
	})

	require.Equal(t, 1, calls)

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, models.ErrorTypeAuthentication, appErr.Type)
}

func TestDoAbortsOnCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := Do(ctx, fastPolicy(), "req_test", func(ctx context.Context) (string, error) {
		calls++
		cancel()
		return "", models.NewTransientProviderError("openai", "connection reset", nil)
	})

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestDoAppliesAttemptTimeout(t *testing.T) {
	p := Policy{
		MaxAttempts:    1,
		BaseDelay:      time.Millisecond,
		AttemptTimeout: 10 * time.Millisecond,
	}

	_, err := Do(context.Background(), p, "req_test", func(ctx context.Context) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
			return "too late", nil
		}
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBackoffDelayGrows(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond}

	for attempt := 1; attempt <= 3; attempt++ {
		expectedFloor := p.BaseDelay << (attempt - 1)
		for range 20 {
			delay := p.backoffDelay(attempt)
			require.GreaterOrEqual(t, delay, expectedFloor)
			require.Less(t, delay, expectedFloor+p.BaseDelay)
		}
	}
}
