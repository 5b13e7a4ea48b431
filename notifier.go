package stockwatch

import (
	"context"
	"errors"
)

// Notifier delivers human-readable text to an operator.
// Text may contain the basic HTML tags <b>, <i> and <a>.
type Notifier interface {
	// Notify sends the text. Failures are reported as EUNAVAILABLE errors.
	Notify(ctx context.Context, text string) error
}

// Notifiers fans a notification out to several sinks.
// Every sink is attempted; failures are joined.
type Notifiers []Notifier

// Notify sends text to every notifier in order.
func (ns Notifiers) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, n := range ns {
		if err := n.Notify(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
