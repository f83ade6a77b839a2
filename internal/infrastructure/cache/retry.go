package cache

import (
	"context"
	"fmt"
	"time"

	"token-score-engine/internal/domain/service"
	"token-score-engine/internal/infrastructure/logger"
)

// Retry re-attempts transient failures with linearly increasing delay:
// attempt n waits baseDelay×n before retrying. Only retryable errors
// (network failures and rate limits) are re-attempted; application and
// validation errors surface immediately so the caller can react.
type Retry struct {
	maxRetries int
	baseDelay  time.Duration
	logger     *logger.Logger
}

// NewRetry creates a retry policy
func NewRetry(maxRetries int, baseDelay time.Duration, logger *logger.Logger) *Retry {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Retry{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger.WithComponent("retry"),
	}
}

// Do invokes fn up to maxRetries+1 times. The last error is returned
// unwrapped so its classification survives for the caller.
func (r *Retry) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * r.baseDelay
			r.logger.Warn(fmt.Sprintf("retrying %s (attempt %d/%d) after %s: %v",
				op, attempt, r.maxRetries, delay, lastErr))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !service.IsRetryable(lastErr) {
			return lastErr
		}
	}

	return lastErr
}
