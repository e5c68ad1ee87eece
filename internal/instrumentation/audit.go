package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/teemow/inboxrelay/internal/logging"
)

// Decision captures one human decision on an approval request for the audit log.
//
// # Privacy Considerations
//
// Approver is the chat username. It is hashed unless IncludePII is set.
type Decision struct {
	ApprovalID string
	Approver   string
	Approved   bool
	Result     string
	Detail     string
	Sequence   int64

	StartTime time.Time
	Duration  time.Duration

	TraceID string
}

// NewDecision starts timing a decision.
func NewDecision(approvalID string, approved bool) *Decision {
	return &Decision{
		ApprovalID: approvalID,
		Approved:   approved,
		StartTime:  time.Now(),
	}
}

// WithApprover sets the chat username that pressed the button.
func (d *Decision) WithApprover(user string) *Decision {
	d.Approver = user
	return d
}

// WithSequence sets the inbound event sequence number.
func (d *Decision) WithSequence(seq int64) *Decision {
	d.Sequence = seq
	return d
}

// WithTrace copies the trace id from ctx.
func (d *Decision) WithTrace(ctx context.Context) *Decision {
	d.TraceID = GetTraceID(ctx)
	return d
}

// Complete records the result status and an optional detail message.
func (d *Decision) Complete(result, detail string) *Decision {
	d.Duration = time.Since(d.StartTime)
	d.Result = result
	d.Detail = detail
	return d
}

// DecisionLabel returns "approve" or "reject".
func (d *Decision) DecisionLabel() string {
	if d.Approved {
		return "approve"
	}
	return "reject"
}

// LogAttrs returns slog attributes for structured logging.
func (d *Decision) LogAttrs(includePII bool) []slog.Attr {
	attrs := []slog.Attr{
		logging.ApprovalID(d.ApprovalID),
		slog.String("decision", d.DecisionLabel()),
		slog.String("result", d.Result),
		logging.Sequence(d.Sequence),
		slog.Duration(logging.KeyDuration, d.Duration),
	}

	if d.Approver != "" {
		if includePII {
			attrs = append(attrs, slog.String("approver", d.Approver))
		} else {
			attrs = append(attrs, logging.UserHash(d.Approver))
		}
	}
	if d.Detail != "" {
		attrs = append(attrs, slog.String("detail", d.Detail))
	}
	if d.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", d.TraceID))
	}

	return attrs
}

// AuditLogger writes approval decisions to a dedicated log stream.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger. A nil logger means slog.Default().
func NewAuditLogger(logger *slog.Logger, config AuditConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogDecision writes one decision. Failed resume actions are logged at warn level.
// A nil AuditLogger is a no-op.
func (al *AuditLogger) LogDecision(d *Decision) {
	if al == nil || !al.enabled {
		return
	}

	attrs := d.LogAttrs(al.includePII)
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if d.Result == "error" {
		al.logger.Warn("approval_decision_failed", args...)
		return
	}
	al.logger.Info("approval_decision", args...)
}
