package instrumentation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSpanAttributeBuilder(t *testing.T) {
	attrs := NewSpanAttributeBuilder().
		WithMessage("msg-1").
		WithAttachments(2).
		WithApproval("id-1", true).
		WithSequence(7).
		Build()

	want := map[attribute.Key]string{
		SpanAttrMessageID:  "msg-1",
		SpanAttrAttachment: "2",
		SpanAttrApprovalID: "id-1",
		SpanAttrDecision:   "approve",
		SpanAttrSequence:   "7",
	}
	if len(attrs) != len(want) {
		t.Fatalf("got %d attributes, want %d", len(attrs), len(want))
	}
	for _, kv := range attrs {
		if got := kv.Value.Emit(); got != want[kv.Key] {
			t.Errorf("%s = %q, want %q", kv.Key, got, want[kv.Key])
		}
	}
}

func TestSpanAttributeBuilder_SkipsEmptyMessage(t *testing.T) {
	attrs := NewSpanAttributeBuilder().WithMessage("").Build()
	if len(attrs) != 0 {
		t.Errorf("expected no attributes, got %v", attrs)
	}
}

func TestSetSpanResult(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("test").Start(context.Background(), "poller.resolve")
	SetSpanResult(span, "not_found")
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("got %d ended spans, want 1", len(ended))
	}
	for _, kv := range ended[0].Attributes() {
		if kv.Key == SpanAttrResult {
			if got := kv.Value.AsString(); got != "not_found" {
				t.Errorf("%s = %q, want not_found", SpanAttrResult, got)
			}
			return
		}
	}
	t.Errorf("span has no %s attribute", SpanAttrResult)
}

func TestStartSpan_NoopProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "worker.process_email")
	defer span.End()

	SetSpanError(span, errors.New("boom"))
	SetSpanError(span, nil)
	SetSpanSuccess(span)

	// The global provider is a no-op unless a test installed one.
	_ = GetTraceID(ctx)
}

func TestStartToolSpan(t *testing.T) {
	_, span := StartToolSpan(context.Background(), "sheet_analyze")
	span.End()

	_, span = StartGoogleAPISpan(context.Background(), ServiceGmail, OperationList)
	span.End()
}
