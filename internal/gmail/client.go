package gmail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/inboxrelay/internal/instrumentation"
	"github.com/teemow/inboxrelay/internal/logging"
	"github.com/teemow/inboxrelay/internal/mailbox"
)

const (
	// DefaultQuery selects unread messages in the inbox.
	DefaultQuery = "is:unread in:inbox"

	// DefaultMaxMessages bounds the messages returned by one ListUnread call.
	DefaultMaxMessages = 10

	labelUnread = "UNREAD"
	me          = "me"
)

// DefaultAllowedExtensions are the attachment types that are downloaded.
var DefaultAllowedExtensions = []string{".xlsx", ".xls", ".csv", ".doc", ".docx", ".pdf", ".txt"}

// Config configures a Client. Zero values select the defaults.
type Config struct {
	Query             string
	MaxMessages       int64
	AllowedExtensions []string

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Client wraps the Gmail Users service.
type Client struct {
	svc     *gmail.UsersService
	query   string
	max     int64
	allowed map[string]bool
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

var _ mailbox.Source = (*Client)(nil)

// NewClient creates a client. Authentication comes from opts, usually
// option.WithHTTPClient with a client from google.HTTPClient.
func NewClient(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Client, error) {
	if cfg.Query == "" {
		cfg.Query = DefaultQuery
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = DefaultMaxMessages
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = DefaultAllowedExtensions
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}

	return &Client{
		svc:     svc.Users,
		query:   cfg.Query,
		max:     cfg.MaxMessages,
		allowed: allowed,
		logger:  logging.WithComponent(cfg.Logger, "gmail"),
		metrics: cfg.Metrics,
	}, nil
}

// ListUnread returns up to the configured number of unread messages with
// their subject and plain-text (or HTML) body.
func (c *Client) ListUnread(ctx context.Context) ([]mailbox.Message, error) {
	var refs []*gmail.Message
	err := c.observe(ctx, "list_messages", instrumentation.OperationList, func(ctx context.Context) error {
		res, err := c.svc.Messages.List(me).Q(c.query).MaxResults(c.max).Context(ctx).Do()
		if err != nil {
			return err
		}
		refs = res.Messages
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list unread messages: %w", err)
	}

	msgs := make([]mailbox.Message, 0, len(refs))
	for _, ref := range refs {
		full, err := c.getMessage(ctx, ref.Id)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, toMessage(full))
	}

	c.logger.Debug("listed unread messages", slog.Int("count", len(msgs)))
	return msgs, nil
}

// MarkRead removes the UNREAD label from message id.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	err := c.observe(ctx, "modify_message", instrumentation.OperationModify, func(ctx context.Context) error {
		_, err := c.svc.Messages.Modify(me, id, &gmail.ModifyMessageRequest{
			RemoveLabelIds: []string{labelUnread},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to mark message %s as read: %w", id, err)
	}
	c.logger.Debug("message marked as read", logging.MessageID(id))
	return nil
}

func (c *Client) getMessage(ctx context.Context, id string) (*gmail.Message, error) {
	var msg *gmail.Message
	err := c.observe(ctx, "get_message", instrumentation.OperationGet, func(ctx context.Context) error {
		var err error
		msg, err = c.svc.Messages.Get(me, id).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return msg, nil
}

// observe runs one API call inside a span and records its metrics.
func (c *Client) observe(ctx context.Context, span, op string, fn func(context.Context) error) error {
	ctx, s := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, span)
	defer s.End()

	start := time.Now()
	err := fn(ctx)
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(s, err)
	} else {
		instrumentation.SetSpanSuccess(s)
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, op, status, time.Since(start))
	return err
}

func toMessage(msg *gmail.Message) mailbox.Message {
	out := mailbox.Message{
		ID:      msg.Id,
		Subject: HeaderValue(msg, "Subject"),
	}

	body, err := messageBody(msg, "text/plain")
	if err != nil || body == "" {
		body, _ = messageBody(msg, "text/html")
	}
	out.Body = body

	walkParts(msg.Payload, func(p *gmail.MessagePart) {
		if p.Filename != "" {
			out.HasAttachments = true
		}
	})
	return out
}

// HeaderValue returns the first header named name, case-insensitively.
func HeaderValue(msg *gmail.Message, name string) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
