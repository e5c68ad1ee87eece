package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/inboxrelay/internal/instrumentation"
	"github.com/teemow/inboxrelay/internal/logging"
)

// MaxAttachmentSize is the largest attachment that is downloaded (25MB).
const MaxAttachmentSize = 25 * 1024 * 1024

// DownloadAttachments saves the allowed attachments of message id under
// dir/<id>/ and returns their paths. Attachments that are too large or have an
// extension outside the allow list are skipped.
func (c *Client) DownloadAttachments(ctx context.Context, id, dir string) ([]string, error) {
	msg, err := c.getMessage(ctx, id)
	if err != nil {
		return nil, err
	}

	var parts []*gmail.MessagePart
	walkParts(msg.Payload, func(p *gmail.MessagePart) {
		if p.Filename != "" && p.Body != nil {
			parts = append(parts, p)
		}
	})
	if len(parts) == 0 {
		return nil, nil
	}

	target := filepath.Join(dir, SanitizeFilename(id))
	if err := os.MkdirAll(target, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create attachment directory: %w", err)
	}

	var saved []string
	for _, p := range parts {
		name := SanitizeFilename(p.Filename)
		if !c.allowed[strings.ToLower(filepath.Ext(name))] {
			c.logger.Debug("skipping attachment type", logging.MessageID(id), logging.File(name))
			continue
		}
		if p.Body.Size > MaxAttachmentSize {
			c.logger.Warn("skipping oversized attachment",
				logging.MessageID(id), logging.File(name))
			continue
		}

		data, err := c.attachmentData(ctx, id, p)
		if err != nil {
			return saved, err
		}

		path := filepath.Join(target, name)
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return saved, fmt.Errorf("failed to save attachment %s: %w", name, err)
		}
		c.metrics.RecordAttachment(ctx, name)
		c.logger.Info("attachment saved", logging.MessageID(id), logging.File(path))
		saved = append(saved, path)
	}
	return saved, nil
}

// attachmentData returns the bytes of p, fetching them when they are not inline.
func (c *Client) attachmentData(ctx context.Context, messageID string, p *gmail.MessagePart) ([]byte, error) {
	if p.Body.AttachmentId == "" {
		return decodeBase64(p.Body.Data)
	}

	var body *gmail.MessagePartBody
	err := c.observe(ctx, "get_attachment", instrumentation.OperationGet, func(ctx context.Context) error {
		var err error
		body, err = c.svc.Messages.Attachments.Get(me, messageID, p.Body.AttachmentId).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment %s: %w", p.Filename, err)
	}
	if body.Size > MaxAttachmentSize {
		return nil, fmt.Errorf("attachment size %d exceeds maximum size %d", body.Size, MaxAttachmentSize)
	}
	return decodeBase64(body.Data)
}

// messageBody returns the first part of the given MIME type, decoded.
func messageBody(msg *gmail.Message, mimeType string) (string, error) {
	var data string
	walkParts(msg.Payload, func(p *gmail.MessagePart) {
		if data == "" && p.MimeType == mimeType && p.Filename == "" && p.Body != nil && p.Body.Data != "" {
			data = p.Body.Data
		}
	})
	if data == "" {
		return "", fmt.Errorf("no %s body found in message", mimeType)
	}
	decoded, err := decodeBase64(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode message body: %w", err)
	}
	return string(decoded), nil
}

// decodeBase64 accepts the base64url encoding Gmail uses, with or without padding.
func decodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.RawURLEncoding, base64.StdEncoding} {
		if data, err := enc.DecodeString(s); err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("invalid base64 data")
}

// walkParts visits part and all of its descendants depth first.
func walkParts(part *gmail.MessagePart, fn func(*gmail.MessagePart)) {
	if part == nil {
		return
	}

	fn(part)

	for _, sub := range part.Parts {
		walkParts(sub, fn)
	}
}

// SanitizeFilename strips path separators and parent references from a file name.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "..", "_")
	if filename == "" {
		return "_"
	}
	return filename
}
