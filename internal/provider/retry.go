package provider

import (
	"context"
	stderrors "errors"
	"net"
	"time"

	"github.com/planforge/planforge/internal/errors"
)

// Retry runs fn with bounded exponential backoff. Only errors classified as
// retryable trigger another attempt; on exhaustion the last error is wrapped
// as SERVICE-003 so callers can take their degraded path.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	delay := policy.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	return errors.Wrap(errors.ErrCodeServiceExhausted, "retries exhausted", lastErr)
}

// IsRetryable classifies an error as worth another attempt. Timeouts,
// unavailability, and rate limits retry; auth failures and malformed
// responses do not.
func IsRetryable(err error) bool {
	switch errors.CodeOf(err) {
	case errors.ErrCodeServiceTimeout, errors.ErrCodeServiceUnavailable:
		return true
	case errors.ErrCodeServiceAuth, errors.ErrCodeServiceBadResponse:
		return false
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}
