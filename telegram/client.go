// Package telegram talks to the Telegram Bot API. It provides a Notifier
// that delivers stockwatch messages to one chat and a Bot that lets the
// operator of that chat manage the watch-list with commands.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fwojciec/stockwatch"
	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is the Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// MaxMessageLength is the longest text sendMessage accepts, in characters.
const MaxMessageLength = 4096

// User is a Telegram user or bot.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// Chat is the conversation a message belongs to.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
}

// Message is an incoming chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text"`
}

// Update is one entry returned by getUpdates.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// apiResponse is the envelope of every Bot API response.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

type sendMessageRequest struct {
	ChatID             string             `json:"chat_id"`
	Text               string             `json:"text"`
	ParseMode          string             `json:"parse_mode,omitempty"`
	LinkPreviewOptions linkPreviewOptions `json:"link_preview_options"`
}

type linkPreviewOptions struct {
	IsDisabled bool `json:"is_disabled"`
}

type getUpdatesRequest struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates"`
}

// Client is a minimal Bot API client.
type Client struct {
	client *resty.Client
	token  string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at another API endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.client.SetBaseURL(strings.TrimRight(baseURL, "/") + "/bot" + c.token)
	}
}

// NewClient creates a client for the bot identified by token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		client: resty.New(),
		token:  token,
	}
	c.client.SetBaseURL(DefaultBaseURL + "/bot" + token)
	c.client.SetHeader("Content-Type", "application/json")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetMe returns the bot's own account. It is used to verify the token at
// startup. A rejected token is reported as EINVALID.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var user User
	if err := c.call(ctx, "getMe", struct{}{}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SendMessage sends HTML-formatted text to a chat, with link previews off.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	return c.call(ctx, "sendMessage", sendMessageRequest{
		ChatID:             chatID,
		Text:               text,
		ParseMode:          "HTML",
		LinkPreviewOptions: linkPreviewOptions{IsDisabled: true},
	}, nil)
}

// GetUpdates long-polls for new messages starting at offset. The server
// holds the request open for up to wait before returning an empty list.
func (c *Client) GetUpdates(ctx context.Context, offset int64, wait time.Duration) ([]Update, error) {
	ctx, cancel := context.WithTimeout(ctx, wait+10*time.Second)
	defer cancel()

	var updates []Update
	err := c.call(ctx, "getUpdates", getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(wait / time.Second),
		AllowedUpdates: []string{"message"},
	}, &updates)
	if err != nil {
		return nil, err
	}
	return updates, nil
}

// call posts body to the API method and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, body, out any) error {
	resp, err := c.client.R().SetContext(ctx).SetBody(body).Post("/" + method)
	if err != nil {
		return c.transportError(ctx, method, err)
	}

	var env apiResponse
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("%w: %v", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "Telegram returned HTTP %d", resp.StatusCode()), err)
	}
	if !env.OK {
		return apiError(method, resp.StatusCode(), env)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// transportError maps a request failure to an operator-safe error. The bot
// token is part of the request URL, so it is scrubbed from the cause.
func (c *Client) transportError(ctx context.Context, method string, err error) error {
	cause := strings.ReplaceAll(err.Error(), c.token, "<token>")
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return fmt.Errorf("%w: %s", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "Telegram request canceled"), cause)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %s: %s", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "Telegram request timed out"), method, cause)
	default:
		return fmt.Errorf("%w: %s: %s", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "Telegram unreachable"), method, cause)
	}
}

func apiError(method string, status int, env apiResponse) error {
	code := env.ErrorCode
	if code == 0 {
		code = status
	}
	switch {
	case code == http.StatusUnauthorized:
		return stockwatch.Errorf(stockwatch.EINVALID, "Telegram rejected the bot token")
	case code == http.StatusTooManyRequests && env.Parameters != nil && env.Parameters.RetryAfter > 0:
		return stockwatch.Errorf(stockwatch.EUNAVAILABLE, "Telegram rate limit, retry after %ds", env.Parameters.RetryAfter)
	case env.Description != "":
		return stockwatch.Errorf(stockwatch.EUNAVAILABLE, "Telegram %s failed: %s", method, env.Description)
	default:
		return stockwatch.Errorf(stockwatch.EUNAVAILABLE, "Telegram %s failed with code %d", method, code)
	}
}
