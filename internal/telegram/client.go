package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"
	"golang.org/x/time/rate"

	"github.com/teemow/inboxrelay/internal/chat"
	"github.com/teemow/inboxrelay/internal/instrumentation"
	"github.com/teemow/inboxrelay/internal/logging"
)

const (
	// DefaultBaseURL is the public Bot API endpoint.
	DefaultBaseURL = "https://api.telegram.org"

	// DefaultSendTimeout bounds a single outbound call.
	DefaultSendTimeout = 15 * time.Second

	// pollGrace is added to the long-poll wait for the HTTP deadline.
	pollGrace = 10 * time.Second

	approveButtonText = "✅ Yes, fix it"
	rejectButtonText  = "❌ No, leave it"
)

// Config configures a Client.
type Config struct {
	Token   string
	ChatID  string
	BaseURL string

	// MessagesPerSecond limits outbound messages. Zero means one per second.
	MessagesPerSecond float64

	// RetryAttempts bounds attempts per outbound message. Zero means three.
	RetryAttempts uint

	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *instrumentation.Metrics
}

// Client talks to the Telegram Bot API. It implements chat.Transport and chat.Notifier.
type Client struct {
	token    string
	chatID   string
	baseURL  string
	attempts uint
	http     *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
}

var (
	_ chat.Transport = (*Client)(nil)
	_ chat.Notifier  = (*Client)(nil)
)

// New creates a Client. The bot token is required.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, &APIError{Method: "init", Err: errors.New("bot token is required")}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MessagesPerSecond <= 0 {
		cfg.MessagesPerSecond = 1
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		token:    cfg.Token,
		chatID:   cfg.ChatID,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		attempts: cfg.RetryAttempts,
		http:     cfg.HTTPClient,
		limiter:  rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), 3),
		logger:   logging.WithComponent(cfg.Logger, "telegram"),
		metrics:  cfg.Metrics,
	}, nil
}

// Poll long-polls getUpdates for updates after the given sequence.
func (c *Client) Poll(ctx context.Context, after int64, wait time.Duration) ([]chat.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, wait+pollGrace)
	defer cancel()

	req := getUpdatesRequest{Offset: after + 1, Timeout: int(wait / time.Second)}

	var raw []json.RawMessage
	if err := c.call(ctx, "getUpdates", req, &raw); err != nil {
		return nil, err
	}

	events := make([]chat.Event, 0, len(raw))
	for _, r := range raw {
		var u Update
		if err := json.Unmarshal(r, &u); err != nil {
			// Keep the sequence so the cursor moves past it; no action means ignored.
			var id struct {
				UpdateID int64 `json:"update_id"`
			}
			if idErr := json.Unmarshal(r, &id); idErr != nil || id.UpdateID == 0 {
				c.logger.Warn("skipping update without update_id", logging.Err(err))
				continue
			}
			c.logger.Warn("undecodable update, passing it on without an action",
				logging.Sequence(id.UpdateID), logging.Err(err))
			events = append(events, chat.Event{Sequence: id.UpdateID, Raw: r})
			continue
		}
		events = append(events, toEvent(u, r))
	}
	return events, nil
}

func toEvent(u Update, raw json.RawMessage) chat.Event {
	ev := chat.Event{Sequence: u.UpdateID, Raw: raw}
	switch {
	case u.CallbackQuery != nil:
		ev.ActionIdentifier = u.CallbackQuery.Data
		ev.CallbackID = u.CallbackQuery.ID
		ev.From = u.CallbackQuery.From.Username
	case u.Message != nil && u.Message.From != nil:
		ev.From = u.Message.From.Username
	}
	return ev
}

// Acknowledge answers the button press behind ev. Events without a callback are ignored.
func (c *Client) Acknowledge(ctx context.Context, ev chat.Event, text string) error {
	if ev.CallbackID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultSendTimeout)
	defer cancel()

	err := c.call(ctx, "answerCallbackQuery", answerCallbackQueryRequest{
		CallbackQueryID: ev.CallbackID,
		Text:            text,
	}, nil)
	c.metrics.RecordChatMessage(ctx, "ack", statusOf(err))
	return err
}

// Send delivers text to the configured chat.
func (c *Client) Send(ctx context.Context, text string) error {
	return c.send(ctx, "text", sendMessageRequest{ChatID: c.chatID, Text: text})
}

// SendWithDecisionButtons delivers text with approve and reject buttons for id.
func (c *Client) SendWithDecisionButtons(ctx context.Context, text, id string) error {
	markup := &InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{{
			{Text: approveButtonText, CallbackData: chat.ApproveAction(id)},
			{Text: rejectButtonText, CallbackData: chat.RejectAction(id)},
		}},
	}
	return c.send(ctx, "decision", sendMessageRequest{ChatID: c.chatID, Text: text, ReplyMarkup: markup})
}

// send rate limits and retries one sendMessage call. Each attempt tries
// Markdown first and falls back to plain text when Telegram rejects it.
func (c *Client) send(ctx context.Context, kind string, msg sendMessageRequest) error {
	if c.chatID == "" {
		c.logger.Warn("telegram chat id missing, skipping notification")
		return nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return &APIError{Method: "sendMessage", Err: fmt.Errorf("rate limit wait: %w", err)}
	}

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
				return apiErr.RetryAfter
			}
			return retry.BackOffDelay(n, err, config)
		}),
	)

	err := r.Do(func() error {
		callCtx, cancel := context.WithTimeout(ctx, DefaultSendTimeout)
		defer cancel()

		err := c.sendMarkdown(callCtx, msg)
		if err != nil && !retryable(err) {
			return retry.Unrecoverable(err)
		}
		return err
	})

	c.metrics.RecordChatMessage(ctx, kind, statusOf(err))
	if err != nil {
		c.logger.Error("failed to send telegram message", slog.String("kind", kind), logging.Err(err))
		return err
	}
	c.logger.Debug("telegram message sent", slog.String("kind", kind))
	return nil
}

func (c *Client) sendMarkdown(ctx context.Context, msg sendMessageRequest) error {
	msg.ParseMode = "Markdown"
	err := c.call(ctx, "sendMessage", msg, nil)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
		c.logger.Warn("markdown parsing failed, retrying as plain text", slog.String("description", apiErr.Description))
		msg.ParseMode = ""
		return c.call(ctx, "sendMessage", msg, nil)
	}
	return err
}

// call POSTs payload to method and decodes the result into out when not nil.
func (c *Client) call(ctx context.Context, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &APIError{Method: method, Err: fmt.Errorf("encode request: %w", err)}
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &APIError{Method: method, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// The URL embeds the token; keep it out of the error.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return &APIError{Method: method, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Method: method, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	var envelope apiResponse
	if err := json.Unmarshal(data, &envelope); err != nil && resp.StatusCode == http.StatusOK {
		return &APIError{Method: method, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK || !envelope.OK {
		apiErr := &APIError{
			Method:      method,
			StatusCode:  resp.StatusCode,
			Description: envelope.Description,
			Err:         errors.New(envelope.Description),
		}
		if apiErr.Description == "" {
			apiErr.Description = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode == http.StatusConflict {
			apiErr.Err = chat.ErrConflict
		}
		if envelope.Parameters != nil && envelope.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(envelope.Parameters.RetryAfter) * time.Second
		}
		return apiErr
	}

	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return &APIError{Method: method, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode result: %w", err)}
		}
	}
	return nil
}

// retryable reports whether a failed call may succeed when repeated.
func retryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	switch {
	case apiErr.StatusCode == 0:
		return !errors.Is(err, context.Canceled)
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return true
	case apiErr.StatusCode >= 500:
		return true
	default:
		return false
	}
}

func statusOf(err error) string {
	if err != nil {
		return instrumentation.StatusError
	}
	return instrumentation.StatusSuccess
}
