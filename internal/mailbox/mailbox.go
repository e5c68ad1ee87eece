// Package mailbox defines the contract between the worker and an email source.
package mailbox

import "context"

// DefaultSubject replaces an empty subject line.
const DefaultSubject = "(no subject)"

// Message is an unread email as seen by the worker.
type Message struct {
	ID             string
	Subject        string
	Body           string
	HasAttachments bool
}

// Source lists unread messages, downloads their attachments and marks them read.
type Source interface {
	ListUnread(ctx context.Context) ([]Message, error)

	// DownloadAttachments writes the supported attachments of message id into
	// dir and returns their paths.
	DownloadAttachments(ctx context.Context, id, dir string) ([]string, error)

	MarkRead(ctx context.Context, id string) error
}
