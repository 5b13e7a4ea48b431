package stockwatch

// ExtractResult holds the extracted content from an HTML page.
type ExtractResult struct {
	// Title is the page title extracted from metadata.
	Title string

	// ContentHTML is the main content as clean HTML.
	// Boilerplate (nav, footer, sidebar, related products) has been removed.
	ContentHTML string
}

// Extractor extracts the main content from HTML pages. Classifiers use it to
// ignore "sold out" badges that belong to unrelated widgets on the page.
type Extractor interface {
	Extract(html string) (*ExtractResult, error)
}
