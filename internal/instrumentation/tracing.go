package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for the inboxrelay package.
const TracerName = "github.com/teemow/inboxrelay"

// Span attribute keys.
const (
	SpanAttrTool       = "mcp.tool"
	SpanAttrService    = "google.service"
	SpanAttrOperation  = "google.operation"
	SpanAttrMessageID  = "mail.message_id"
	SpanAttrAttachment = "mail.attachment_count"
	SpanAttrApprovalID = "approval.id"
	SpanAttrDecision   = "approval.decision"
	SpanAttrResult     = "approval.result"
	SpanAttrSequence   = "chat.sequence"
)

// SpanAttributeBuilder helps construct OpenTelemetry span attributes
// with consistent naming.
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewSpanAttributeBuilder creates a new SpanAttributeBuilder.
func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{
		attrs: make([]attribute.KeyValue, 0, 8),
	}
}

// WithMessage adds the mailbox message id.
func (b *SpanAttributeBuilder) WithMessage(id string) *SpanAttributeBuilder {
	if id != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrMessageID, id))
	}
	return b
}

// WithAttachments adds the attachment count.
func (b *SpanAttributeBuilder) WithAttachments(n int) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.Int(SpanAttrAttachment, n))
	return b
}

// WithApproval adds the approval id and decision.
func (b *SpanAttributeBuilder) WithApproval(id string, approved bool) *SpanAttributeBuilder {
	decision := "reject"
	if approved {
		decision = "approve"
	}
	b.attrs = append(b.attrs,
		attribute.String(SpanAttrApprovalID, id),
		attribute.String(SpanAttrDecision, decision),
	)
	return b
}

// WithSequence adds the inbound event sequence number.
func (b *SpanAttributeBuilder) WithSequence(seq int64) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.Int64(SpanAttrSequence, seq))
	return b
}

// Build returns the constructed attributes.
func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

// StartSpan starts a new span with the given name and attributes.
// The caller is responsible for ending the span with defer span.End().
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartToolSpan starts a span for an MCP tool invocation.
func StartToolSpan(ctx context.Context, toolName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, attribute.String(SpanAttrTool, toolName))
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "tool."+toolName,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartGoogleAPISpan starts a client span for Google API operations.
func StartGoogleAPISpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+2)
	allAttrs = append(allAttrs,
		attribute.String(SpanAttrService, service),
		attribute.String(SpanAttrOperation, operation),
	)
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "google."+service+"."+operation,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError records an error on the span and sets the status to error.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanResult records the approval result status on span.
func SetSpanResult(span trace.Span, status string) {
	span.SetAttributes(attribute.String(SpanAttrResult, status))
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace ID from the current span in context.
// Returns empty string if no valid span is present.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
