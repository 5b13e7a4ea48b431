// Package http provides an HTTP-based implementation of stockwatch.Fetcher.
// Requests go through resty with a Cloudflare bypass transport, a cookie
// jar and a desktop browser User-Agent so that storefronts behind common
// anti-bot layers answer like they would for a browser.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/fwojciec/stockwatch"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"
)

// DefaultFetchTimeout is the default timeout for HTTP requests.
const DefaultFetchTimeout = 20 * time.Second

// DefaultUserAgent is sent unless overridden with WithUserAgent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Ensure Fetcher implements stockwatch.Fetcher at compile time.
var _ stockwatch.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves page content using HTTP requests. It does not execute
// JavaScript; use rod.Fetcher for pages that only render in a browser.
type Fetcher struct {
	client    *resty.Client
	timeout   time.Duration
	userAgent string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout for HTTP requests.
// Defaults to DefaultFetchTimeout (20s) if not specified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:   DefaultFetchTimeout,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}

	client := resty.New()
	// The error is always nil when options are provided.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("User-Agent", f.userAgent)
	client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	client.SetHeader("Accept-Language", "en-US,en;q=0.9,zh-CN;q=0.8")
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	client.SetTimeout(f.timeout)
	f.client = client

	return f
}

// Fetch retrieves the content of the given URL.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", classifyTransportError(ctx, err)
	}

	if isChallenge(resp) {
		return "", fmt.Errorf("%w: status %d", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "anti-bot challenge"), resp.StatusCode())
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "HTTP %d", resp.StatusCode())
	}

	return resp.String(), nil
}

// Close releases idle connections.
func (f *Fetcher) Close() error {
	f.client.GetClient().CloseIdleConnections()
	return nil
}

// classifyTransportError maps a transport failure to a short, operator-safe
// reason while keeping the cause for logs.
func classifyTransportError(ctx context.Context, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return fmt.Errorf("%w: %v", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "request canceled"), err)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "request timed out"), err)
	default:
		return fmt.Errorf("%w: %v", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "connection failed"), err)
	}
}

// isChallenge reports whether the response is a Cloudflare interstitial
// rather than the requested page.
func isChallenge(resp *resty.Response) bool {
	if resp.Header().Get("cf-mitigated") == "challenge" {
		return true
	}
	if resp.StatusCode() != http.StatusForbidden && resp.StatusCode() != http.StatusServiceUnavailable {
		return false
	}
	if !strings.EqualFold(resp.Header().Get("Server"), "cloudflare") {
		return false
	}
	body := resp.String()
	return strings.Contains(body, "challenge-platform") || strings.Contains(body, "Just a moment...")
}
