package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Callback identifier prefixes carried by decision buttons.
const (
	ApprovePrefix = "approve_"
	RejectPrefix  = "reject_"
)

// ErrConflict reports that another consumer is polling the same channel.
var ErrConflict = errors.New("chat: another poller is active on this channel")

// Event is one inbound event from the transport.
type Event struct {
	// Sequence orders events; the poll cursor advances past it.
	Sequence int64

	// ActionIdentifier is the button callback data, empty for non-button events.
	ActionIdentifier string

	// CallbackID identifies the button press for acknowledgement.
	CallbackID string

	// From is the username of the human who produced the event.
	From string

	// Raw is the transport envelope.
	Raw json.RawMessage
}

// Transport delivers inbound events.
type Transport interface {
	// Poll waits up to wait for events with a sequence greater than after.
	Poll(ctx context.Context, after int64, wait time.Duration) ([]Event, error)

	// Acknowledge gives the human immediate feedback on ev.
	Acknowledge(ctx context.Context, ev Event, text string) error
}

// Notifier sends outbound messages.
type Notifier interface {
	Send(ctx context.Context, text string) error

	// SendWithDecisionButtons attaches approve and reject buttons whose
	// callback identifiers are ApproveAction(id) and RejectAction(id).
	SendWithDecisionButtons(ctx context.Context, text, id string) error
}

// ApproveAction returns the callback identifier of the approve button for id.
func ApproveAction(id string) string { return ApprovePrefix + id }

// RejectAction returns the callback identifier of the reject button for id.
func RejectAction(id string) string { return RejectPrefix + id }

// ParseDecision extracts the approval id and decision from a callback identifier.
// ok is false for identifiers without a recognized prefix or without an id.
func ParseDecision(action string) (id string, approved bool, ok bool) {
	switch {
	case strings.HasPrefix(action, ApprovePrefix):
		id, approved = strings.TrimPrefix(action, ApprovePrefix), true
	case strings.HasPrefix(action, RejectPrefix):
		id = strings.TrimPrefix(action, RejectPrefix)
	default:
		return "", false, false
	}
	if id == "" {
		return "", false, false
	}
	return id, approved, true
}
