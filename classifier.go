package stockwatch

// DefaultOutOfStockKeywords are the phrases that mark a page as unavailable
// when no keywords are configured. Matching is case-insensitive.
var DefaultOutOfStockKeywords = []string{"缺货", "售罄", "Out of Stock", "Sold Out"}

// Classifier decides whether fetched page content shows the item as available.
type Classifier interface {
	// Classify returns true when the content shows none of the out-of-stock
	// phrases. An error means the content could not be interpreted.
	Classify(content string) (available bool, err error)
}
