package common

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/inboxrelay/internal/instrumentation"
	"github.com/teemow/inboxrelay/internal/logging"
)

// ToolHandler is the mcp-go tool handler signature.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

var errToolResult = errors.New("tool returned an error result")

// Instrumentation carries the optional observability sinks for tool handlers.
// A zero value disables everything but the span.
type Instrumentation struct {
	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// InstrumentedToolHandler wraps a tool handler with a span, invocation
// metrics and a debug log line.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", inst, handler))
func InstrumentedToolHandler(toolName string, inst Instrumentation, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		defer span.End()

		start := time.Now()
		result, err := handler(ctx, request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		switch {
		case err != nil:
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, err)
		case result != nil && result.IsError:
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, errToolResult)
		default:
			instrumentation.SetSpanSuccess(span)
		}

		inst.Metrics.RecordToolInvocation(ctx, toolName, status, duration)
		if inst.Logger != nil {
			inst.Logger.Debug("tool invoked",
				logging.Operation(toolName),
				logging.Status(status),
				logging.Duration(duration),
				logging.Err(err))
		}

		return result, err
	}
}

// StringArg returns the string argument name, or "" when absent.
func StringArg(request mcp.CallToolRequest, name string) string {
	v, _ := request.GetArguments()[name].(string)
	return v
}
