package telegram

import (
	"context"
	"unicode/utf16"

	"github.com/fwojciec/stockwatch"
)

// Ensure Notifier implements stockwatch.Notifier.
var _ stockwatch.Notifier = (*Notifier)(nil)

// Notifier sends stockwatch messages to a single chat.
type Notifier struct {
	client *Client
	chatID string
}

// NewNotifier creates a Notifier for chatID, which may be a numeric ID or
// an @channel username.
func NewNotifier(client *Client, chatID string) *Notifier {
	return &Notifier{client: client, chatID: chatID}
}

// Notify sends text, splitting it when it exceeds the message length limit.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	for _, part := range splitMessage(text, MaxMessageLength) {
		if err := n.client.SendMessage(ctx, n.chatID, part); err != nil {
			return err
		}
	}
	return nil
}

// splitMessage cuts text into parts of at most limit UTF-16 code units,
// which is how the Bot API measures message length, preferring line breaks
// so HTML tags, which never span lines here, stay balanced.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	var parts []string
	for {
		fit, units := 0, 0
		for fit < len(runes) {
			n := utf16.RuneLen(runes[fit])
			if n < 0 {
				n = 1 // invalid runes are sent as U+FFFD
			}
			if units+n > limit {
				break
			}
			units += n
			fit++
		}
		if fit == len(runes) {
			if len(parts) == 0 {
				return []string{text}
			}
			if fit > 0 {
				parts = append(parts, string(runes))
			}
			return parts
		}
		if fit == 0 {
			fit = 1
		}

		cut := fit
		for i := fit; i > fit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
}
