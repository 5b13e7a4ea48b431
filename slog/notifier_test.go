package slog_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/fwojciec/stockwatch"
	"github.com/fwojciec/stockwatch/mock"
	swslog "github.com/fwojciec/stockwatch/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingNotifier_Notify(t *testing.T) {
	t.Parallel()

	t.Run("logs channel and size", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		var got string
		inner := &mock.Notifier{
			NotifyFn: func(_ context.Context, text string) error {
				got = text
				return nil
			},
		}

		n := swslog.NewLoggingNotifier(inner, "telegram", newDebugLogger(&buf))
		err := n.Notify(context.Background(), "有货")

		require.NoError(t, err)
		assert.Equal(t, "有货", got)
		assert.Contains(t, buf.String(), "channel=telegram")
		assert.Contains(t, buf.String(), "chars=2")
	})

	t.Run("logs failure at warn level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.Notifier{
			NotifyFn: func(context.Context, string) error {
				return stockwatch.Errorf(stockwatch.EUNAVAILABLE, "telegram unavailable")
			},
		}

		n := swslog.NewLoggingNotifier(inner, "telegram", slog.New(slog.NewTextHandler(&buf, nil)))
		err := n.Notify(context.Background(), "hi")

		require.Error(t, err)
		assert.Contains(t, buf.String(), "level=WARN")
		assert.Contains(t, buf.String(), "telegram unavailable")
	})
}
