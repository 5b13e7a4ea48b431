package mock

import "github.com/fwojciec/stockwatch"

var _ stockwatch.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of stockwatch.Extractor.
type Extractor struct {
	ExtractFn func(html string) (*stockwatch.ExtractResult, error)
}

func (e *Extractor) Extract(html string) (*stockwatch.ExtractResult, error) {
	return e.ExtractFn(html)
}
