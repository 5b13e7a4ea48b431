package main_test

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fwojciec/stockwatch"
	main "github.com/fwojciec/stockwatch/cmd/stockwatch"
	"github.com/fwojciec/stockwatch/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testMain returns a Main using a file store in a temporary directory and
// a fetcher serving pages from the given map. It also returns the path of
// its config file.
func testMain(t *testing.T, pages map[string]string) (*main.Main, string) {
	t.Helper()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json5")
	writeFile(t, cfgPath, fmt.Sprintf(`{
		store: "file",
		targetsFile: %q,
		legacyUrlsFile: %q,
		checkInterval: 3600,
		hostRate: -1,
	}`, filepath.Join(dir, "targets.json"), filepath.Join(dir, "urls.txt")))

	m := main.NewMain()
	m.Getenv = noEnv
	m.Fetcher = &mock.Fetcher{
		FetchFn: func(_ context.Context, url string) (string, error) {
			if content, ok := pages[url]; ok {
				return content, nil
			}
			return "", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "HTTP 404")
		},
		CloseFn: func() error { return nil },
	}
	return m, cfgPath
}

func run(t *testing.T, m *main.Main, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var out, errOut bytes.Buffer
	err = m.Run(context.Background(), args, &out, &errOut)
	return out.String(), errOut.String(), err
}

func TestMain_Run(t *testing.T) {
	t.Parallel()

	t.Run("no arguments shows help and fails", func(t *testing.T) {
		t.Parallel()

		m, _ := testMain(t, nil)
		stdout, _, err := run(t, m)

		require.Error(t, err)
		assert.Contains(t, stdout, "Usage")
	})

	t.Run("help succeeds", func(t *testing.T) {
		t.Parallel()

		m, _ := testMain(t, nil)
		stdout, _, err := run(t, m, "--help")

		require.NoError(t, err)
		assert.Contains(t, stdout, "add")
		assert.Contains(t, stdout, "remove")
	})

	t.Run("invalid config is reported", func(t *testing.T) {
		t.Parallel()

		m, _ := testMain(t, nil)
		cfgPath := filepath.Join(t.TempDir(), "config.json5")
		writeFile(t, cfgPath, `{checkInterval: -5}`)

		_, stderr, err := run(t, m, "-c", cfgPath, "list")

		assert.Equal(t, stockwatch.EINVALID, stockwatch.ErrorCode(err))
		assert.Contains(t, stderr, "Hint")
	})

	t.Run("add, list, check and remove", func(t *testing.T) {
		t.Parallel()

		m, cfgPath := testMain(t, map[string]string{
			"https://shop.example.com/vps": "<html><head><title>Tiny VPS</title></head><body>Sold Out</body></html>",
			"https://shop.example.com/big": "<html><body>Order now</body></html>",
		})

		stdout, _, err := run(t, m, "-c", cfgPath, "add", "https://shop.example.com/vps")
		require.NoError(t, err)
		assert.Contains(t, stdout, `Added "Tiny VPS"`)
		assert.Contains(t, stdout, "Status: out of stock")

		stdout, _, err = run(t, m, "-c", cfgPath, "add", "https://shop.example.com/big", "--name", "Big box", "--no-check")
		require.NoError(t, err)
		assert.Contains(t, stdout, `Added "Big box"`)
		assert.NotContains(t, stdout, "Status")

		_, stderr, err := run(t, m, "-c", cfgPath, "add", "https://shop.example.com/big")
		assert.Equal(t, stockwatch.ECONFLICT, stockwatch.ErrorCode(err))
		assert.Contains(t, stderr, "already watched")

		stdout, _, err = run(t, m, "-c", cfgPath, "list", "--check")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Tiny VPS")
		assert.Contains(t, stdout, "Big box")
		assert.Contains(t, stdout, "out of stock")
		assert.Contains(t, stdout, "in stock")

		stdout, _, err = run(t, m, "-c", cfgPath, "check", "https://shop.example.com/big")
		require.NoError(t, err)
		assert.Contains(t, stdout, "In stock")

		stdout, _, err = run(t, m, "-c", cfgPath, "remove", "#1")
		require.NoError(t, err)
		assert.Contains(t, stdout, `Removed "Tiny VPS"`)

		stdout, _, err = run(t, m, "-c", cfgPath, "list")
		require.NoError(t, err)
		assert.NotContains(t, stdout, "Tiny VPS")
		assert.Contains(t, stdout, "never")
	})

	t.Run("check reports failures", func(t *testing.T) {
		t.Parallel()

		m, cfgPath := testMain(t, nil)
		_, stderr, err := run(t, m, "-c", cfgPath, "check", "https://shop.example.com/gone")

		assert.Equal(t, stockwatch.EUNAVAILABLE, stockwatch.ErrorCode(err))
		assert.Contains(t, stderr, "check failed: HTTP 404")
	})

	t.Run("run requires a notification channel", func(t *testing.T) {
		t.Parallel()

		m, cfgPath := testMain(t, nil)
		_, _, err := run(t, m, "-c", cfgPath, "run")

		assert.Equal(t, stockwatch.EINVALID, stockwatch.ErrorCode(err))
	})

	t.Run("run announces startup and baseline status", func(t *testing.T) {
		t.Parallel()

		m, cfgPath := testMain(t, map[string]string{
			"https://shop.example.com/vps": "<html><body>In stock, ships today</body></html>",
		})
		_, _, err := run(t, m, "-c", cfgPath, "add", "https://shop.example.com/vps", "--name", "Tiny VPS", "--no-check")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var mu sync.Mutex
		var messages []string
		m.Notifier = &mock.Notifier{
			NotifyFn: func(_ context.Context, text string) error {
				mu.Lock()
				defer mu.Unlock()
				messages = append(messages, text)
				if strings.Contains(text, "Current status") {
					cancel()
				}
				return nil
			},
		}

		var out, errOut bytes.Buffer
		err = m.Run(ctx, []string{"-c", cfgPath, "run"}, &out, &errOut)

		require.NoError(t, err)
		mu.Lock()
		defer mu.Unlock()
		require.Len(t, messages, 2)
		assert.Contains(t, messages[0], "Stock watcher started")
		assert.Contains(t, messages[0], "Watching 1 target(s)")
		assert.Contains(t, messages[1], "Current status: in stock")
		assert.Contains(t, messages[1], "Tiny VPS")
		assert.Contains(t, errOut.String(), "watcher stopped")
	})
}
