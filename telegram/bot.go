package telegram

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/stockwatch"
	"github.com/fwojciec/stockwatch/watch"
)

const (
	// DefaultPollTimeout is how long a getUpdates request is held open.
	DefaultPollTimeout = 30 * time.Second

	// DefaultErrorDelay is the wait after a failed getUpdates request.
	DefaultErrorDelay = 5 * time.Second
)

// skipValue is the reply that leaves an optional field of a guided /add empty.
const skipValue = "-"

const helpText = `<b>Stock watcher commands</b>
/add &lt;url&gt; [name] [| note] - watch a product page
/add - add a page step by step
/remove &lt;number|url|id&gt; - stop watching a page
/list - show watched pages and their status
/check &lt;url&gt; - check a page once without watching it
/cancel - abort a step-by-step /add
/help - show this message`

// Bot serves operator commands from one chat through long polling.
type Bot struct {
	client   *Client
	chatID   string
	service  *watch.Service
	sessions *sessions

	// PollTimeout is the long-poll duration. Defaults to DefaultPollTimeout.
	PollTimeout time.Duration

	// ErrorDelay is the wait after a failed poll. Defaults to DefaultErrorDelay.
	ErrorDelay time.Duration

	Logger *slog.Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewBot creates a bot that accepts commands from chatID only.
func NewBot(client *Client, chatID string, service *watch.Service) *Bot {
	return &Bot{
		client:   client,
		chatID:   chatID,
		service:  service,
		sessions: newSessions(SessionTTL),
	}
}

// Run polls for messages and answers them until ctx is canceled. Poll
// failures are logged and retried after ErrorDelay.
func (b *Bot) Run(ctx context.Context) error {
	var offset int64
	for ctx.Err() == nil {
		updates, err := b.client.GetUpdates(ctx, offset, b.pollTimeout())
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			b.logger().Warn("poll updates", "err", err)
			select {
			case <-ctx.Done():
			case <-time.After(b.errorDelay()):
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message == nil {
				continue
			}
			reply := b.HandleMessage(ctx, u.Message)
			if reply == "" {
				continue
			}
			chat := strconv.FormatInt(u.Message.Chat.ID, 10)
			for _, part := range splitMessage(reply, MaxMessageLength) {
				if err := b.client.SendMessage(context.WithoutCancel(ctx), chat, part); err != nil {
					b.logger().Warn("send reply", "chat", chat, "err", err)
					break
				}
			}
		}
	}
	return nil
}

// HandleMessage answers one message and returns the reply text. Messages
// from other chats are ignored and produce an empty reply.
func (b *Bot) HandleMessage(ctx context.Context, msg *Message) string {
	if !b.authorized(msg.Chat) {
		b.logger().Warn("ignoring message from unknown chat", "chat", msg.Chat.ID)
		return ""
	}

	text := strings.TrimSpace(msg.Text)
	user := msg.Chat.ID
	if msg.From != nil {
		user = msg.From.ID
	}

	if !strings.HasPrefix(text, "/") {
		if sess, ok := b.sessions.get(user); ok {
			return b.continueAdd(ctx, user, sess, text)
		}
		return "Send /help for the list of commands."
	}

	cmd, args := splitCommand(text)
	b.logger().Debug("command", "cmd", cmd, "user", user)

	switch cmd {
	case "/start", "/help":
		return helpText
	case "/add":
		b.sessions.drop(user)
		if args == "" {
			b.sessions.put(user, &addSession{step: stepURL})
			return "Send the product page URL, or /cancel."
		}
		return b.add(ctx, parseAddArgs(args))
	case "/remove", "/delete":
		if args == "" {
			return "Usage: /remove &lt;number|url|id&gt;"
		}
		return b.remove(ctx, args)
	case "/list":
		return b.list(ctx)
	case "/check":
		if args == "" {
			return "Usage: /check &lt;url&gt;"
		}
		return b.check(ctx, args)
	case "/cancel":
		if b.sessions.drop(user) {
			return "Cancelled."
		}
		return "Nothing to cancel."
	default:
		return "Unknown command. Send /help for the list of commands."
	}
}

// authorized reports whether chat is the configured chat, matching either
// its numeric ID or its @username.
func (b *Bot) authorized(chat Chat) bool {
	if strconv.FormatInt(chat.ID, 10) == b.chatID {
		return true
	}
	return chat.Username != "" && strings.EqualFold("@"+chat.Username, b.chatID)
}

func (b *Bot) continueAdd(ctx context.Context, user int64, sess *addSession, text string) string {
	switch sess.step {
	case stepURL:
		if err := stockwatch.ValidateURL(text); err != nil {
			b.sessions.put(user, sess)
			return "❌ " + html.EscapeString(stockwatch.ErrorMessage(err)) + "\nSend the URL again, or /cancel."
		}
		sess.target.URL = text
		sess.step = stepName
		b.sessions.put(user, sess)
		return "Send a name for this page, or " + skipValue + " to use the page title."
	case stepName:
		if text != skipValue {
			sess.target.Name = text
		}
		sess.step = stepNote
		b.sessions.put(user, sess)
		return "Send a note, or " + skipValue + " to skip."
	default:
		if text != skipValue {
			sess.target.Note = text
		}
		b.sessions.drop(user)
		target := sess.target
		return b.add(ctx, &target)
	}
}

func (b *Bot) add(ctx context.Context, target *stockwatch.Target) string {
	st, err := b.service.AddTarget(ctx, target, true)
	if err != nil {
		return "❌ " + html.EscapeString(stockwatch.ErrorMessage(err))
	}

	var sb strings.Builder
	sb.WriteString("✅ <b>Now watching</b>")
	fmt.Fprintf(&sb, "\n🏷 %s", html.EscapeString(st.Target.DisplayName()))
	fmt.Fprintf(&sb, "\n🔗 %s", html.EscapeString(st.Target.URL))
	if st.Target.Note != "" {
		fmt.Fprintf(&sb, "\n📝 %s", html.EscapeString(st.Target.Note))
	}
	fmt.Fprintf(&sb, "\n📊 %s", html.EscapeString(watch.StatusLabel(*st)))
	return sb.String()
}

func (b *Bot) remove(ctx context.Context, ref string) string {
	target, err := b.service.RemoveTarget(ctx, ref)
	if err != nil {
		return "❌ " + html.EscapeString(stockwatch.ErrorMessage(err))
	}
	return "🗑 Stopped watching " + html.EscapeString(target.DisplayName())
}

func (b *Bot) list(ctx context.Context) string {
	statuses, err := b.service.ListTargets(ctx)
	if err != nil {
		return "❌ " + html.EscapeString(stockwatch.ErrorMessage(err))
	}
	if len(statuses) == 0 {
		return "No pages watched yet. Use /add &lt;url&gt; to add one."
	}

	now := b.now()
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 <b>Watching %d page(s)</b>", len(statuses))
	for i, st := range statuses {
		fmt.Fprintf(&sb, "\n\n%d. <b>%s</b>", i+1, html.EscapeString(st.Target.DisplayName()))
		fmt.Fprintf(&sb, "\n%s", html.EscapeString(st.Target.URL))
		fmt.Fprintf(&sb, "\n%s, checked %s", html.EscapeString(watch.StatusLabel(st)), watch.StatusAge(st, now))
	}
	return sb.String()
}

func (b *Bot) check(ctx context.Context, rawURL string) string {
	obs, err := b.service.CheckURL(ctx, rawURL)
	if err != nil {
		return "❌ " + html.EscapeString(stockwatch.ErrorMessage(err))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 %s", html.EscapeString(strings.TrimSpace(rawURL)))
	if obs.Title != "" {
		fmt.Fprintf(&sb, "\n🏷 %s", html.EscapeString(obs.Title))
	}
	switch {
	case obs.Err != nil:
		fmt.Fprintf(&sb, "\n⚠️ Check failed: %s", html.EscapeString(stockwatch.ErrorMessage(obs.Err)))
	case obs.Available:
		sb.WriteString("\n✅ In stock")
	default:
		sb.WriteString("\n❌ Out of stock")
	}
	return sb.String()
}

// splitCommand separates "/cmd@bot args" into "/cmd" and "args".
func splitCommand(text string) (cmd, args string) {
	cmd, args, _ = strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(args)
}

// parseAddArgs parses "<url> [name] [| note]".
func parseAddArgs(args string) *stockwatch.Target {
	head, note, _ := strings.Cut(args, "|")
	fields := strings.Fields(head)
	t := &stockwatch.Target{Note: strings.TrimSpace(note)}
	if len(fields) > 0 {
		t.URL = fields[0]
		t.Name = strings.Join(fields[1:], " ")
	}
	return t
}

func (b *Bot) pollTimeout() time.Duration {
	if b.PollTimeout > 0 {
		return b.PollTimeout
	}
	return DefaultPollTimeout
}

func (b *Bot) errorDelay() time.Duration {
	if b.ErrorDelay > 0 {
		return b.ErrorDelay
	}
	return DefaultErrorDelay
}

func (b *Bot) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *Bot) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}
