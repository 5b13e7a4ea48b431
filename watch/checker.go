package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/stockwatch"
)

// DefaultFetchTimeout bounds a single fetch attempt.
const DefaultFetchTimeout = 20 * time.Second

// Checker turns a URL into an Observation by fetching and classifying it.
// Failures of any kind, panics included, are reported on the Observation
// rather than returned, so one broken target cannot affect another.
type Checker struct {
	Fetcher    stockwatch.Fetcher
	Classifier stockwatch.Classifier

	// Limiter, if set, spaces out requests to the same host.
	Limiter *HostLimiter

	// Timeout bounds each fetch attempt. Defaults to DefaultFetchTimeout.
	Timeout time.Duration

	// RetryDelays are the waits between fetch attempts. Nil uses
	// DefaultRetryDelays; an empty slice disables retries.
	RetryDelays []time.Duration

	// Title, if set, extracts the page title recorded on the observation.
	Title func(content string) string

	Logger *slog.Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Check fetches and classifies rawURL once, retrying failed fetches.
func (c *Checker) Check(ctx context.Context, rawURL string) (obs stockwatch.Observation) {
	defer func() {
		obs.CheckedAt = c.now()
		if r := recover(); r != nil {
			c.logger().Error("check panicked", "url", rawURL, "panic", r)
			obs = stockwatch.Observation{
				Err:       stockwatch.Errorf(stockwatch.EINTERNAL, "check failed unexpectedly"),
				CheckedAt: c.now(),
			}
		}
	}()

	content, err := c.fetch(ctx, rawURL)
	if err != nil {
		return stockwatch.Observation{Err: err}
	}

	available, err := c.Classifier.Classify(content)
	if err != nil {
		return stockwatch.Observation{Err: err}
	}

	obs = stockwatch.Observation{
		Available:   available,
		ContentHash: ContentHash(content),
	}
	if c.Title != nil {
		obs.Title = c.Title(content)
	}
	return obs
}

func (c *Checker) fetch(ctx context.Context, rawURL string) (string, error) {
	var content string
	err := retryWithDelays(ctx, c.retryDelays(), func(ctx context.Context) error {
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx, rawURL); err != nil {
				return err
			}
		}

		ctx, cancel := context.WithTimeout(ctx, c.timeout())
		defer cancel()

		var err error
		content, err = c.Fetcher.Fetch(ctx, rawURL)
		return err
	}, func(attempt int, err error) {
		c.logger().Debug("retrying fetch", "url", rawURL, "attempt", attempt, "err", err)
	})
	return content, err
}

func (c *Checker) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultFetchTimeout
}

func (c *Checker) retryDelays() []time.Duration {
	if c.RetryDelays == nil {
		return DefaultRetryDelays()
	}
	return c.RetryDelays
}

func (c *Checker) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Checker) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
