package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/katalog/internal/service"
)

var (
	// ErrRateLimit indicates that a remote API rejected the call for exceeding its quota.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrMaxRetries indicates that all retry attempts have been exhausted.
	ErrMaxRetries = errors.New("max retries exceeded")
)

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// WithRetry executes an operation with exponential backoff. Errors explicitly
// marked as not retryable stop the loop immediately.
func WithRetry(ctx context.Context, operation func() error, opts service.RetryOptions) error {
	opts = opts.WithDefaults()
	delay := opts.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		var retryableErr *RetryableError
		if errors.As(lastErr, &retryableErr) && !retryableErr.Retryable {
			return lastErr
		}

		if attempt == opts.MaxAttempts {
			break
		}

		if errors.Is(lastErr, ErrRateLimit) {
			delay = opts.MaxDelay
		}

		slog.Debug("operation failed, retrying",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"delay", delay,
			"error", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * opts.Multiplier)
			if delay > opts.MaxDelay {
				delay = opts.MaxDelay
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, opts.MaxAttempts, lastErr)
}
