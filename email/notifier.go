// Package email provides a stockwatch.Notifier that sends alerts over SMTP.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/stockwatch"
	jwemail "github.com/jordan-wright/email"
)

// DefaultSubject is used when a message has no text on its first line.
const DefaultSubject = "Stock watcher"

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Validate returns an error if the settings cannot be used to send mail.
func (c Config) Validate() error {
	if c.Host == "" {
		return stockwatch.Errorf(stockwatch.EINVALID, "email host required")
	}
	if c.Port <= 0 {
		return stockwatch.Errorf(stockwatch.EINVALID, "email port must be positive")
	}
	if c.From == "" {
		return stockwatch.Errorf(stockwatch.EINVALID, "email sender required")
	}
	if len(c.To) == 0 {
		return stockwatch.Errorf(stockwatch.EINVALID, "email recipient required")
	}
	return nil
}

// SendFunc delivers a message to an SMTP server.
type SendFunc func(e *jwemail.Email, addr string, auth smtp.Auth) error

// Ensure Notifier implements stockwatch.Notifier.
var _ stockwatch.Notifier = (*Notifier)(nil)

// Notifier sends each notification as one email.
type Notifier struct {
	config    Config
	converter stockwatch.Converter
	send      SendFunc
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithConverter renders the plain-text part as Markdown instead of bare text.
func WithConverter(c stockwatch.Converter) Option {
	return func(n *Notifier) {
		n.converter = c
	}
}

// WithSendFunc replaces the SMTP delivery.
func WithSendFunc(fn SendFunc) Option {
	return func(n *Notifier) {
		n.send = fn
	}
}

// NewNotifier creates a Notifier. Use Config.Validate to check settings first.
func NewNotifier(config Config, opts ...Option) *Notifier {
	n := &Notifier{config: config, send: sendSMTP}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify sends text as an email. The first line becomes the subject. SMTP
// has no cancellation, so a canceled ctx abandons the wait but not the send;
// the returned error then wraps stockwatch.ErrUnconfirmed.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	e, err := Message(n.config.From, n.config.To, text, n.converter)
	if err != nil {
		return err
	}

	addr := n.config.Host + ":" + strconv.Itoa(n.config.Port)
	var auth smtp.Auth
	if n.config.Username != "" {
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
	}

	done := make(chan error, 1)
	go func() {
		done <- n.send(e, addr, auth)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %v", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "email delivery failed"), err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w: %v", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "email delivery timed out"), stockwatch.ErrUnconfirmed, ctx.Err())
	}
}

// Message builds the email for an HTML notification, with a plain-text
// alternative rendered from the same markup. With a nil converter the
// plain-text part is the bare text.
func Message(from string, to []string, text string, conv stockwatch.Converter) (*jwemail.Email, error) {
	plain, err := plainText(text)
	if err != nil {
		return nil, err
	}

	subject, _, _ := strings.Cut(plain, "\n")
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = DefaultSubject
	}

	body := strings.ReplaceAll(text, "\n", "<br>\n")
	if conv != nil {
		if plain, err = conv.Convert(body); err != nil {
			return nil, err
		}
	}

	e := jwemail.NewEmail()
	e.From = from
	e.To = to
	e.Subject = subject
	e.Text = []byte(plain)
	e.HTML = []byte("<html><body>" + body + "</body></html>")
	return e, nil
}

// plainText strips tags and decodes entities.
func plainText(text string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return "", fmt.Errorf("parse message: %w", err)
	}
	return doc.Text(), nil
}

// sendSMTP sends with PLAIN auth, retrying without auth when the server
// does not offer it.
func sendSMTP(e *jwemail.Email, addr string, auth smtp.Auth) error {
	err := e.Send(addr, auth)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = e.Send(addr, nil)
	}
	return err
}
