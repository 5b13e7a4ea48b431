package watch

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/fwojciec/stockwatch"
)

// TimeLayout is used for timestamps in notifications.
const TimeLayout = "2006-01-02 15:04:05"

// ContentHash computes a short hash of fetched content using xxhash.
func ContentHash(content string) string {
	return fmt.Sprintf("%x", xxhash.Sum64String(content))
}

// FormatEvent renders an event as a Telegram-style HTML message.
func FormatEvent(ev *stockwatch.Event) string {
	var b strings.Builder

	switch ev.Kind {
	case stockwatch.EventStatus:
		if ev.Available {
			b.WriteString("📊 <b>Current status: in stock</b>")
		} else {
			b.WriteString("📊 <b>Current status: out of stock</b>")
		}
	case stockwatch.EventAvailable:
		b.WriteString("🎉 <b>In stock!</b>")
	case stockwatch.EventStillAvailable:
		fmt.Fprintf(&b, "🔔 <b>Still in stock (%d/%d)</b>", ev.Repeat, ev.Cap)
	case stockwatch.EventUnavailable:
		b.WriteString("❌ <b>Out of stock again</b>")
	case stockwatch.EventCheckFailed:
		b.WriteString("⚠️ <b>Check failed</b>")
	default:
		b.WriteString("ℹ️ <b>Update</b>")
	}

	if t := ev.Target; t != nil {
		fmt.Fprintf(&b, "\n🏷 %s", html.EscapeString(t.DisplayName()))
		fmt.Fprintf(&b, "\n🔗 %s", html.EscapeString(t.URL))
		if t.Note != "" {
			fmt.Fprintf(&b, "\n📝 %s", html.EscapeString(t.Note))
		}
	}
	if ev.Err != nil {
		fmt.Fprintf(&b, "\n❗ Reason: %s", html.EscapeString(stockwatch.ErrorMessage(ev.Err)))
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	fmt.Fprintf(&b, "\n⏰ %s", at.Format(TimeLayout))
	return b.String()
}

// FormatStartup renders the notice sent when the watcher starts.
// A negative count is left out.
func FormatStartup(count int, interval time.Duration) string {
	var b strings.Builder
	b.WriteString("🚀 <b>Stock watcher started</b>")
	if count >= 0 {
		fmt.Fprintf(&b, "\nWatching %d target(s)", count)
	}
	fmt.Fprintf(&b, "\nCheck interval: %s", interval)
	return b.String()
}

// StatusLabel describes a target's status in a few words.
func StatusLabel(st TargetStatus) string {
	var label string
	switch {
	case st.State == nil && st.Failure != "":
		return "check failed: " + st.Failure
	case st.State == nil:
		return "not checked yet"
	case st.State.Available:
		label = "in stock"
	default:
		label = "out of stock"
	}
	if st.Failure != "" {
		label += " (last check failed: " + st.Failure + ")"
	}
	return label
}

// StatusAge describes when a target was last checked relative to now.
func StatusAge(st TargetStatus, now time.Time) string {
	if st.CheckedAt.IsZero() {
		return "never"
	}
	return humanize.RelTime(st.CheckedAt, now, "ago", "from now")
}

// TruncateURL shortens a URL for display, keeping the end which is more informative.
func TruncateURL(url string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if maxLen < 4 {
		return url[:min(len(url), maxLen)]
	}
	if len(url) <= maxLen {
		return url
	}
	return "..." + url[len(url)-maxLen+3:]
}
