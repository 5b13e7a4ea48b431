// Package readability narrows a product page to its main content using the
// Readability algorithm. It is an alternative to the trafilatura package
// for shops whose layout trafilatura handles poorly.
package readability

import (
	"fmt"
	"strings"

	"github.com/fwojciec/stockwatch"
	"github.com/go-shiori/go-readability"
)

// Ensure Extractor implements stockwatch.Extractor at compile time.
var _ stockwatch.Extractor = (*Extractor)(nil)

// Extractor wraps go-readability to extract main content from HTML.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract processes raw HTML and returns the main content.
func (e *Extractor) Extract(rawHTML string) (*stockwatch.ExtractResult, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, stockwatch.Errorf(stockwatch.EINVALID, "empty page")
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), nil)
	if err != nil {
		return nil, fmt.Errorf("extract main content: %w", err)
	}

	return &stockwatch.ExtractResult{
		Title:       article.Title,
		ContentHTML: article.Content,
	}, nil
}
