package sheet_tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxrelay/internal/sheet"
	"github.com/teemow/inboxrelay/internal/textextract"
	"github.com/teemow/inboxrelay/internal/tools/common"
)

// Tool names.
const (
	ToolSummarize   = "sheet_summarize"
	ToolAnalyze     = "sheet_analyze"
	ToolApplyEdits  = "sheet_apply_edits"
	ToolExtractText = "document_extract_text"
)

var errOutsideBase = errors.New("path is outside the allowed directory")

// Deps are the collaborators of the tool handlers.
type Deps struct {
	Processor *sheet.Processor

	// BaseDir confines every path argument. Empty means the working directory.
	BaseDir string

	// Suffix is the default corrected-file suffix.
	Suffix string

	Instrumentation common.Instrumentation
}

// RegisterSheetTools registers the spreadsheet and document tools. In
// read-only mode sheet_apply_edits is left out.
func RegisterSheetTools(s *mcpserver.MCPServer, deps Deps, readOnly bool) error {
	if deps.Processor == nil {
		return errors.New("sheet processor is required")
	}
	if deps.Suffix == "" {
		deps.Suffix = sheet.DefaultSuffix
	}
	h := &handlers{deps: deps}
	wrap := func(name string, fn common.ToolHandler) common.ToolHandler {
		return common.InstrumentedToolHandler(name, deps.Instrumentation, fn)
	}

	pathArg := mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Path of the file, relative to the download directory"),
	)

	s.AddTool(mcp.NewTool(ToolSummarize,
		mcp.WithDescription("Summarize a CSV or XLSX file: shape, column names, sample rows and per-column statistics"),
		pathArg,
	), wrap(ToolSummarize, h.summarize))

	s.AddTool(mcp.NewTool(ToolAnalyze,
		mcp.WithDescription("Check a CSV or XLSX file for data-quality issues and suggest corrective edit operations"),
		pathArg,
	), wrap(ToolAnalyze, h.analyze))

	s.AddTool(mcp.NewTool(ToolExtractText,
		mcp.WithDescription("Extract the text of a TXT, PDF or DOCX file, truncated for prompting"),
		pathArg,
	), wrap(ToolExtractText, h.extractText))

	if !readOnly {
		s.AddTool(mcp.NewTool(ToolApplyEdits,
			mcp.WithDescription("Apply edit operations to a CSV or XLSX file and save the result as a new file next to it"),
			pathArg,
			mcp.WithString("operations",
				mcp.Required(),
				mcp.Description(`JSON array of operations, e.g. [{"type":"fill_nulls","column":"amount","value":"0"}]. `+
					"Types: rename_column (new_name), fill_nulls (value), standardize_dates"),
			),
			mcp.WithString("suffix",
				mcp.Description("Suffix appended to the file name (default: '_corrected')"),
			),
		), wrap(ToolApplyEdits, h.applyEdits))
	}

	return nil
}

type handlers struct {
	deps Deps
}

// resolve maps a path argument into BaseDir.
func (h *handlers) resolve(request mcp.CallToolRequest) (string, error) {
	arg := strings.TrimSpace(common.StringArg(request, "path"))
	if arg == "" {
		return "", errors.New("path is required")
	}

	base, err := filepath.Abs(h.deps.BaseDir)
	if err != nil {
		return "", err
	}
	path := arg
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideBase
	}
	return path, nil
}

func (h *handlers) summarize(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := h.resolve(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	summary, err := h.deps.Processor.Summarize(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read %s: %v", filepath.Base(path), err)), nil
	}
	return mcp.NewToolResultText(summary), nil
}

func (h *handlers) analyze(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := h.resolve(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	analysis, err := h.deps.Processor.Analyze(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to analyze %s: %v", filepath.Base(path), err)), nil
	}

	out, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format output: %v", err)), nil
	}
	if !analysis.NeedsAction {
		return mcp.NewToolResultText("No issues found:\n" + string(out)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Found %d issue(s):\n%s", len(analysis.Issues), out)), nil
}

func (h *handlers) extractText(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := h.resolve(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := textextract.Extract(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to extract %s: %v", filepath.Base(path), err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (h *handlers) applyEdits(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := h.resolve(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ops, err := parseOperations(request.GetArguments()["operations"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	suffix := common.StringArg(request, "suffix")
	if suffix == "" {
		suffix = h.deps.Suffix
	}
	if strings.ContainsAny(suffix, `/\`) {
		return mcp.NewToolResultError("suffix must not contain path separators"), nil
	}

	table, applied, err := h.deps.Processor.Apply(path, ops)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read %s: %v", filepath.Base(path), err)), nil
	}
	saved, err := h.deps.Processor.Persist(table, path, suffix)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to save: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Applied %d of %d operation(s). Saved to %s", applied, len(ops), saved)), nil
}

// parseOperations accepts the operations argument as a JSON string or as an
// already decoded array.
func parseOperations(v any) ([]sheet.Operation, error) {
	var raw []byte
	switch val := v.(type) {
	case nil:
		return nil, errors.New("operations is required")
	case string:
		raw = []byte(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("invalid operations: %w", err)
		}
		raw = b
	}

	var ops []sheet.Operation
	if err := json.Unmarshal(raw, &ops); err != nil {
		return nil, fmt.Errorf("invalid operations: %w", err)
	}
	if len(ops) == 0 {
		return nil, errors.New("operations must not be empty")
	}
	return ops, nil
}
