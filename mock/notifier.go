package mock

import (
	"context"

	"github.com/fwojciec/stockwatch"
)

var _ stockwatch.Notifier = (*Notifier)(nil)

// Notifier is a mock implementation of stockwatch.Notifier.
type Notifier struct {
	NotifyFn func(ctx context.Context, text string) error
}

func (n *Notifier) Notify(ctx context.Context, text string) error {
	return n.NotifyFn(ctx, text)
}
