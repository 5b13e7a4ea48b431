package watch

import (
	"context"
	"errors"
	"time"
)

// DefaultRetryDelays returns the backoff delays for retried operations: 1s, 2s.
func DefaultRetryDelays() []time.Duration {
	return []time.Duration{1 * time.Second, 2 * time.Second}
}

// permanentError stops retryWithDelays early.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// permanent wraps err so that it is not retried.
func permanent(err error) error {
	return &permanentError{err: err}
}

// retryWithDelays calls fn until it succeeds, waiting delays[i] before
// attempt i+2. Errors wrapped with permanent end the loop at once and are
// returned unwrapped. onRetry, if set, is called before each wait.
func retryWithDelays(ctx context.Context, delays []time.Duration, fn func(ctx context.Context) error, onRetry func(attempt int, err error)) error {
	maxAttempts := len(delays) + 1

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt >= maxAttempts-1 {
			break
		}
		if ctx.Err() != nil {
			return lastErr
		}

		if onRetry != nil {
			onRetry(attempt+2, err)
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delays[attempt]):
		}
	}

	return lastErr
}
