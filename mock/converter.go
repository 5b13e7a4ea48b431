package mock

import "github.com/fwojciec/stockwatch"

var _ stockwatch.Converter = (*Converter)(nil)

// Converter is a mock implementation of stockwatch.Converter.
type Converter struct {
	ConvertFn func(html string) (string, error)
}

func (c *Converter) Convert(html string) (string, error) {
	return c.ConvertFn(html)
}
