package watch_test

import (
	"testing"
	"time"

	"github.com/fwojciec/stockwatch"
	"github.com/fwojciec/stockwatch/watch"
	"github.com/stretchr/testify/assert"
)

func TestFormatEvent(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 4, 2, 8, 15, 0, 0, time.UTC)
	target := &stockwatch.Target{Name: "Tokyo <Lite>", URL: "https://shop.example.com/p?id=1&c=2", Note: "promo"}

	tests := []struct {
		name  string
		event stockwatch.Event
		want  []string
	}{
		{
			name:  "available",
			event: stockwatch.Event{Kind: stockwatch.EventAvailable, Target: target, At: at},
			want:  []string{"🎉 <b>In stock!</b>", "Tokyo &lt;Lite&gt;", "https://shop.example.com/p?id=1&amp;c=2", "📝 promo", "2026-04-02 08:15:00"},
		},
		{
			name:  "still available",
			event: stockwatch.Event{Kind: stockwatch.EventStillAvailable, Target: target, Repeat: 2, Cap: 3, At: at},
			want:  []string{"Still in stock (2/3)"},
		},
		{
			name:  "unavailable",
			event: stockwatch.Event{Kind: stockwatch.EventUnavailable, Target: target, At: at},
			want:  []string{"Out of stock again"},
		},
		{
			name:  "baseline status",
			event: stockwatch.Event{Kind: stockwatch.EventStatus, Available: true, Target: target, At: at},
			want:  []string{"Current status: in stock"},
		},
		{
			name: "check failed shows safe reason only",
			event: stockwatch.Event{
				Kind:   stockwatch.EventCheckFailed,
				Target: target,
				Err:    assert.AnError,
				At:     at,
			},
			want: []string{"Check failed", "Reason: Internal error."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := watch.FormatEvent(&tt.event)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
		})
	}
}

func TestFormatStartup(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "🚀 <b>Stock watcher started</b>\nWatching 2 target(s)\nCheck interval: 1m0s", watch.FormatStartup(2, time.Minute))
	assert.NotContains(t, watch.FormatStartup(-1, time.Minute), "Watching")
}

func TestStatusLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "not checked yet", watch.StatusLabel(watch.TargetStatus{}))
	assert.Equal(t, "check failed: HTTP 503", watch.StatusLabel(watch.TargetStatus{Failure: "HTTP 503"}))
	assert.Equal(t, "in stock", watch.StatusLabel(watch.TargetStatus{State: &stockwatch.TrackState{Available: true}}))
	assert.Equal(t, "out of stock (last check failed: HTTP 503)", watch.StatusLabel(watch.TargetStatus{
		State:   &stockwatch.TrackState{},
		Failure: "HTTP 503",
	}))
}

func TestStatusAge(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 2, 8, 15, 0, 0, time.UTC)

	assert.Equal(t, "never", watch.StatusAge(watch.TargetStatus{}, now))
	assert.Equal(t, "3 minutes ago", watch.StatusAge(watch.TargetStatus{CheckedAt: now.Add(-3 * time.Minute)}, now))
}

func TestTruncateURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://a.io", watch.TruncateURL("https://a.io", 20))
	assert.Equal(t, "...ple.com/vps/tokyo", watch.TruncateURL("https://shop.example.com/vps/tokyo", 20))
	assert.Equal(t, "htt", watch.TruncateURL("https://a.io", 3))
	assert.Equal(t, "", watch.TruncateURL("https://a.io", 0))
}

func TestContentHash(t *testing.T) {
	t.Parallel()

	assert.Equal(t, watch.ContentHash("abc"), watch.ContentHash("abc"))
	assert.NotEqual(t, watch.ContentHash("abc"), watch.ContentHash("abd"))
}
