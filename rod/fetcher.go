// Package rod fetches pages with a headless Chrome browser for shops that
// only render stock status with JavaScript or sit behind a browser check.
package rod

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fwojciec/stockwatch"
)

// DefaultFetchTimeout bounds a single page load.
const DefaultFetchTimeout = 30 * time.Second

// Ensure Fetcher implements stockwatch.Fetcher at compile time.
var _ stockwatch.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves rendered HTML from URLs using Chrome browser automation.
// Pages are opened with stealth evasions applied.
// Fetcher is safe for concurrent use by multiple goroutines.
type Fetcher struct {
	manager      *BrowserManager
	fetchTimeout time.Duration
	renderDelay  time.Duration
	policy       RecyclePolicy
	logger       *slog.Logger
	closed       atomic.Bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithFetchTimeout sets the timeout for a single fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.fetchTimeout = d
	}
}

// WithRenderDelay waits the given duration after the load event before the
// HTML is read, for pages that fill in stock status asynchronously.
func WithRenderDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.renderDelay = d
	}
}

// WithRecyclePolicy sets when the browser is replaced or shut down.
func WithRecyclePolicy(p RecyclePolicy) Option {
	return func(f *Fetcher) {
		f.policy = p
	}
}

// WithLogger sets the logger for browser lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a new Fetcher that launches a headless Chrome browser.
// Close must be called when the Fetcher is no longer needed.
//
// Returns an error if Chrome/Chromium cannot be found or launched.
func NewFetcher(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		fetchTimeout: DefaultFetchTimeout,
		policy:       DefaultRecyclePolicy(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}

	manager, err := NewBrowserManager(WithRecyclePolicy(f.policy), WithManagerLogger(f.logger))
	if err != nil {
		return nil, err
	}
	f.manager = manager
	return f, nil
}

// Fetch navigates to the URL and returns the rendered HTML.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.closed.Load() {
		return "", stockwatch.Errorf(stockwatch.EINVALID, "fetcher is closed")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, f.fetchTimeout)
	defer cancel()

	page, release, err := f.manager.Page()
	if err != nil {
		if stockwatch.ErrorCode(err) != stockwatch.EINTERNAL {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "browser unavailable"), err)
	}
	defer release()

	page = page.Context(ctx)

	if err := page.Navigate(url); err != nil {
		return "", navigationError(ctx, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", navigationError(ctx, err)
	}

	if f.renderDelay > 0 {
		select {
		case <-time.After(f.renderDelay):
		case <-ctx.Done():
			return "", navigationError(ctx, ctx.Err())
		}
	}

	html, err := page.HTML()
	if err != nil {
		return "", navigationError(ctx, err)
	}
	if isChallengePage(html) {
		return "", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "anti-bot challenge")
	}
	return html, nil
}

// Close releases browser resources. Close is safe to call multiple times.
func (f *Fetcher) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	return f.manager.Close()
}

// LauncherPID returns the process ID of the browser launcher, or 0 while
// the browser is shut down.
func (f *Fetcher) LauncherPID() int {
	return f.manager.LauncherPID()
}

// navigationError keeps context errors matchable with errors.Is while giving
// the operator a short reason.
func navigationError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "request timed out"), context.DeadlineExceeded)
	case errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "request canceled"), context.Canceled)
	default:
		return fmt.Errorf("%w: %v", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "page load failed"), err)
	}
}

// isChallengePage reports whether the rendered page is still an
// interstitial browser check.
func isChallengePage(html string) bool {
	return strings.Contains(html, "challenge-platform") ||
		strings.Contains(html, "<title>Just a moment...</title>")
}
