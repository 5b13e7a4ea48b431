package stockwatch

import "context"

// Fetcher retrieves page content from URLs.
// Implementations are expected to bound the duration of a single fetch.
type Fetcher interface {
	// Fetch requests the URL and returns the response body.
	// Failures are reported as EUNAVAILABLE errors with a short reason.
	// The context controls timeout and cancellation.
	Fetch(ctx context.Context, url string) (content string, err error)

	// Close releases any underlying resources (browsers, connections).
	Close() error
}
