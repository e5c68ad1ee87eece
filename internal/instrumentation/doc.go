// Package instrumentation provides OpenTelemetry instrumentation for inboxrelay.
//
// # Metrics
//
// Approval workflow:
//   - approvals_requested_total: Counter of registered approval requests
//   - approvals_resolved_total: Counter of resolve attempts by decision and status
//   - approvals_expired_total: Counter of requests removed after their timeout
//   - approvals_pending: Gauge of requests awaiting a decision
//   - resume_action_duration_seconds: Histogram of resume action durations
//
// Inbound poller:
//   - inbound_events_total: Counter of chat events by decision (approve, reject, ignored)
//   - poll_errors_total: Counter of failed long-poll calls by reason (conflict, transient)
//
// Mail processing:
//   - emails_processed_total / email_processing_duration_seconds
//   - attachments_total by bounded file type
//
// Outbound calls:
//   - chat_messages_total by kind and status
//   - google_api_operations_total / google_api_operation_duration_seconds (gmail, gemini)
//   - mcp_tool_invocations_total / mcp_tool_duration_seconds
//
// # Tracing
//
// Spans are created per processed email, per resolved decision, per MCP tool
// call and per Google API call.
//
// # Example Usage
//
//	cfg := instrumentation.DefaultConfig()
//	cfg.ServiceVersion = version
//	provider, err := instrumentation.NewProvider(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	metrics := provider.Metrics()
//	metrics.RecordApprovalRequested(ctx)
package instrumentation
