package stockwatch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fwojciec/stockwatch"
	"github.com/fwojciec/stockwatch/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifiers_Notify(t *testing.T) {
	t.Parallel()

	t.Run("sends to every notifier", func(t *testing.T) {
		t.Parallel()

		var got []string
		record := func(prefix string) *mock.Notifier {
			return &mock.Notifier{
				NotifyFn: func(_ context.Context, text string) error {
					got = append(got, prefix+text)
					return nil
				},
			}
		}

		ns := stockwatch.Notifiers{record("a:"), record("b:")}
		err := ns.Notify(context.Background(), "hello")

		require.NoError(t, err)
		assert.Equal(t, []string{"a:hello", "b:hello"}, got)
	})

	t.Run("continues past failures and joins errors", func(t *testing.T) {
		t.Parallel()

		called := false
		ns := stockwatch.Notifiers{
			&mock.Notifier{NotifyFn: func(context.Context, string) error {
				return stockwatch.Errorf(stockwatch.EUNAVAILABLE, "telegram unreachable")
			}},
			&mock.Notifier{NotifyFn: func(context.Context, string) error {
				called = true
				return nil
			}},
		}

		err := ns.Notify(context.Background(), "hello")

		require.Error(t, err)
		assert.True(t, called)
		var swErr *stockwatch.Error
		assert.True(t, errors.As(err, &swErr))
	})

	t.Run("empty fan-out is a no-op", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, stockwatch.Notifiers{}.Notify(context.Background(), "x"))
	})
}
