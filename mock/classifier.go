package mock

import "github.com/fwojciec/stockwatch"

var _ stockwatch.Classifier = (*Classifier)(nil)

// Classifier is a mock implementation of stockwatch.Classifier.
type Classifier struct {
	ClassifyFn func(content string) (bool, error)
}

func (c *Classifier) Classify(content string) (bool, error) {
	return c.ClassifyFn(content)
}
