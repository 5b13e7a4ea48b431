// Package goquery classifies product pages by looking for out-of-stock
// phrases, optionally restricted to the page's visible or main content.
package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/stockwatch"
)

// Ensure Classifier implements stockwatch.Classifier at compile time.
var _ stockwatch.Classifier = (*Classifier)(nil)

// Classifier reports a page as available when none of its phrases occur.
// Matching is case-insensitive and ignores differences in whitespace.
//
// By default the raw content is searched, markup included, so phrases in
// attributes or embedded JSON still count. WithVisibleText restricts the
// search to rendered text; WithExtractor further restricts it to the main
// content returned by the extractor.
type Classifier struct {
	phrases     []string
	visibleOnly bool
	extractor   stockwatch.Extractor
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithVisibleText matches phrases against the document text only, skipping
// markup, scripts and styles.
func WithVisibleText() Option {
	return func(c *Classifier) {
		c.visibleOnly = true
	}
}

// WithExtractor narrows matching to the main content of the page.
// It implies WithVisibleText. Pages the extractor cannot handle are
// matched in full.
func WithExtractor(e stockwatch.Extractor) Option {
	return func(c *Classifier) {
		c.extractor = e
		c.visibleOnly = true
	}
}

// NewClassifier creates a Classifier for the given out-of-stock phrases.
// Empty phrases are ignored; with no phrases left the defaults are used.
func NewClassifier(phrases []string, opts ...Option) *Classifier {
	c := &Classifier{}
	for _, p := range phrases {
		if p = normalize(p); p != "" {
			c.phrases = append(c.phrases, p)
		}
	}
	if len(c.phrases) == 0 {
		for _, p := range stockwatch.DefaultOutOfStockKeywords {
			c.phrases = append(c.phrases, normalize(p))
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Phrases returns the normalized phrases the classifier looks for.
func (c *Classifier) Phrases() []string {
	return append([]string(nil), c.phrases...)
}

// Classify returns false when any out-of-stock phrase is present.
func (c *Classifier) Classify(content string) (bool, error) {
	if strings.TrimSpace(content) == "" {
		return false, stockwatch.Errorf(stockwatch.EINVALID, "empty page")
	}

	text := normalize(c.text(content))
	for _, p := range c.phrases {
		if strings.Contains(text, p) {
			return false, nil
		}
	}
	return true, nil
}

// text returns the portion of content that phrases are matched against.
func (c *Classifier) text(content string) string {
	if !c.visibleOnly {
		return content
	}

	if c.extractor != nil {
		if res, err := c.extractor.Extract(content); err == nil && strings.TrimSpace(res.ContentHTML) != "" {
			content = res.ContentHTML
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	doc.Find("script, style, noscript, template").Remove()
	return doc.Text()
}

// normalize lowercases s and collapses runs of whitespace to single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
