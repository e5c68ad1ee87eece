package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrTool      = "tool"
	attrDecision  = "decision"
	attrReason    = "reason"
	attrKind      = "kind"
	attrFileType  = "file_type"
)

// Metrics provides methods for recording observability metrics.
// A zero Metrics is a valid no-op recorder.
type Metrics struct {
	// Approval workflow
	approvalsRequestedTotal metric.Int64Counter
	approvalsResolvedTotal  metric.Int64Counter
	approvalsExpiredTotal   metric.Int64Counter
	approvalsPending        metric.Int64UpDownCounter
	resumeActionDuration    metric.Float64Histogram

	// Inbound poller
	inboundEventsTotal metric.Int64Counter
	pollErrorsTotal    metric.Int64Counter

	// Mail processing
	emailsProcessedTotal    metric.Int64Counter
	emailProcessingDuration metric.Float64Histogram
	attachmentsTotal        metric.Int64Counter

	// Outbound calls
	chatMessagesTotal          metric.Int64Counter
	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	// MCP Tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.approvalsRequestedTotal, err = meter.Int64Counter(
		"approvals_requested_total",
		metric.WithDescription("Total number of approval requests registered"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create approvals_requested_total counter: %w", err)
	}

	m.approvalsResolvedTotal, err = meter.Int64Counter(
		"approvals_resolved_total",
		metric.WithDescription("Total number of resolve attempts by decision and result status"),
		metric.WithUnit("{resolution}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create approvals_resolved_total counter: %w", err)
	}

	m.approvalsExpiredTotal, err = meter.Int64Counter(
		"approvals_expired_total",
		metric.WithDescription("Total number of approval requests removed after their timeout"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create approvals_expired_total counter: %w", err)
	}

	m.approvalsPending, err = meter.Int64UpDownCounter(
		"approvals_pending",
		metric.WithDescription("Number of approval requests awaiting a decision"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create approvals_pending gauge: %w", err)
	}

	m.resumeActionDuration, err = meter.Float64Histogram(
		"resume_action_duration_seconds",
		metric.WithDescription("Resume action execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resume_action_duration_seconds histogram: %w", err)
	}

	m.inboundEventsTotal, err = meter.Int64Counter(
		"inbound_events_total",
		metric.WithDescription("Total number of inbound chat events by decision"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create inbound_events_total counter: %w", err)
	}

	m.pollErrorsTotal, err = meter.Int64Counter(
		"poll_errors_total",
		metric.WithDescription("Total number of failed long-poll calls by reason"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll_errors_total counter: %w", err)
	}

	m.emailsProcessedTotal, err = meter.Int64Counter(
		"emails_processed_total",
		metric.WithDescription("Total number of processed emails by status"),
		metric.WithUnit("{email}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create emails_processed_total counter: %w", err)
	}

	m.emailProcessingDuration, err = meter.Float64Histogram(
		"email_processing_duration_seconds",
		metric.WithDescription("Per-email processing duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create email_processing_duration_seconds histogram: %w", err)
	}

	m.attachmentsTotal, err = meter.Int64Counter(
		"attachments_total",
		metric.WithDescription("Total number of processed attachments by file type"),
		metric.WithUnit("{attachment}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachments_total counter: %w", err)
	}

	m.chatMessagesTotal, err = meter.Int64Counter(
		"chat_messages_total",
		metric.WithDescription("Total number of outbound chat messages by kind and status"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat_messages_total counter: %w", err)
	}

	m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}

	m.googleAPIOperationDuration, err = meter.Float64Histogram(
		"google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operation_duration_seconds histogram: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordApprovalRequested counts a newly registered approval and raises the pending gauge.
func (m *Metrics) RecordApprovalRequested(ctx context.Context) {
	if m == nil || m.approvalsRequestedTotal == nil || m.approvalsPending == nil {
		return
	}
	m.approvalsRequestedTotal.Add(ctx, 1)
	m.approvalsPending.Add(ctx, 1)
}

// RecordApprovalResolved records the outcome of a resolve attempt.
//
// Parameters:
//   - decision: "approve" or "reject"
//   - status: the result status ("resolved", "cancelled", "error", "not_found")
//   - duration: time spent in the resume action (zero when none ran)
func (m *Metrics) RecordApprovalResolved(ctx context.Context, decision, status string, duration time.Duration) {
	if m == nil || m.approvalsResolvedTotal == nil || m.resumeActionDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrDecision, decision),
		attribute.String(attrStatus, status),
	}
	m.approvalsResolvedTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if duration > 0 {
		m.resumeActionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
}

// RecordApprovalsExpired counts n requests removed after their timeout.
func (m *Metrics) RecordApprovalsExpired(ctx context.Context, n int) {
	if m == nil || m.approvalsExpiredTotal == nil || n <= 0 {
		return
	}
	m.approvalsExpiredTotal.Add(ctx, int64(n))
}

// RecordApprovalsRemoved lowers the pending gauge by n.
func (m *Metrics) RecordApprovalsRemoved(ctx context.Context, n int) {
	if m == nil || m.approvalsPending == nil || n <= 0 {
		return
	}
	m.approvalsPending.Add(ctx, -int64(n))
}

// RecordInboundEvent counts an inbound chat event.
// Decision should be one of "approve", "reject" or "ignored".
func (m *Metrics) RecordInboundEvent(ctx context.Context, decision string) {
	if m == nil || m.inboundEventsTotal == nil {
		return
	}
	m.inboundEventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrDecision, decision)))
}

// RecordPollError counts a failed long-poll call.
// Reason should be PollErrorConflict or PollErrorTransient.
func (m *Metrics) RecordPollError(ctx context.Context, reason string) {
	if m == nil || m.pollErrorsTotal == nil {
		return
	}
	m.pollErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

// RecordEmailProcessed records one processed email with status and duration.
func (m *Metrics) RecordEmailProcessed(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.emailsProcessedTotal == nil || m.emailProcessingDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.String(attrStatus, status)}
	m.emailsProcessedTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.emailProcessingDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordAttachment counts a processed attachment. The file extension is
// normalized to keep the label set bounded.
func (m *Metrics) RecordAttachment(ctx context.Context, filename string) {
	if m == nil || m.attachmentsTotal == nil {
		return
	}
	m.attachmentsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrFileType, FileTypeLabel(filename))))
}

// RecordChatMessage counts an outbound chat message.
// Kind should be one of "text", "decision" or "ack".
func (m *Metrics) RecordChatMessage(ctx context.Context, kind, status string) {
	if m == nil || m.chatMessagesTotal == nil {
		return
	}
	m.chatMessagesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrKind, kind),
		attribute.String(attrStatus, status),
	))
}

// RecordGoogleAPIOperation records a Google API operation with service, operation,
// status, and duration.
//
// Parameters:
//   - service: Google service name (gmail, gemini)
//   - operation: Operation type (list, get, modify, generate)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.googleAPIOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
