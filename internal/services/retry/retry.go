package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/omnigate/omnigate/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Policy bounds repeated dispatch attempts against one upstream provider.
// Only errors marked retryable (rate limits, transient network failures)
// trigger another attempt; validation, authentication and unsupported-model
// errors surface immediately.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
}

// NewPolicy builds a policy from configuration
func NewPolicy(cfg models.RetryConfig) Policy {
	return Policy{
		MaxAttempts:    cfg.MaxAttempts,
		BaseDelay:      time.Duration(cfg.BaseDelayMs) * time.Millisecond,
		AttemptTimeout: time.Duration(cfg.AttemptTimeoutMs) * time.Millisecond,
	}
}

// Do runs fn under the policy. Each attempt gets its own timeout ceiling;
// the delay before retry N is BaseDelay * 2^(N-1) plus random jitter in
// [0, BaseDelay). When attempts are exhausted the last error is returned
// as-is. Caller cancellation aborts immediately without another attempt.
func Do[T any](ctx context.Context, p Policy, requestID string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if p.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}

		result, err := fn(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Caller gave up; do not burn further attempts
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if !isRetryable(err) || attempt == p.MaxAttempts {
			return zero, lastErr
		}

		delay := p.backoffDelay(attempt)
		fiberlog.Warnf("[%s] attempt %d/%d failed, retrying in %v: %v",
			requestID, attempt, p.MaxAttempts, delay, err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}

func (p Policy) backoffDelay(attempt int) time.Duration {
	delay := p.BaseDelay << (attempt - 1)
	if p.BaseDelay > 0 {
		delay += rand.N(p.BaseDelay)
	}
	return delay
}

func isRetryable(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Retryable
}
