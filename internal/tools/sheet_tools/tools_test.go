package sheet_tools

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxrelay/internal/sheet"
)

const salesCSV = "Client Name,amount\nAcme,\nGlobex,5\n"

func setup(t *testing.T, readOnly bool) (*mcpserver.MCPServer, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales.csv"), []byte(salesCSV), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o600))

	s := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithToolCapabilities(true))
	proc := sheet.New(sheet.Config{Now: func() time.Time {
		return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	}})
	require.NoError(t, RegisterSheetTools(s, Deps{Processor: proc, BaseDir: dir}, readOnly))
	return s, dir
}

func call(t *testing.T, s *mcpserver.MCPServer, tool string, args map[string]any) (string, bool) {
	t.Helper()
	st, ok := s.ListTools()[tool]
	require.True(t, ok, "tool %s not registered", tool)

	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args
	res, err := st.Handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)

	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "unexpected content %T", res.Content[0])
	return text.Text, res.IsError
}

func TestRegisterSheetTools(t *testing.T) {
	tests := []struct {
		name     string
		readOnly bool
		want     []string
	}{
		{"read-write", false, []string{ToolExtractText, ToolApplyEdits, ToolAnalyze, ToolSummarize}},
		{"read-only", true, []string{ToolExtractText, ToolAnalyze, ToolSummarize}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := setup(t, tt.readOnly)
			var names []string
			for name := range s.ListTools() {
				names = append(names, name)
			}
			sort.Strings(names)
			want := append([]string(nil), tt.want...)
			sort.Strings(want)
			assert.Equal(t, want, names)
		})
	}
}

func TestRegisterSheetTools_RequiresProcessor(t *testing.T) {
	s := mcpserver.NewMCPServer("test", "0.0.0")
	assert.Error(t, RegisterSheetTools(s, Deps{}, false))
}

func TestSummarize(t *testing.T) {
	s, _ := setup(t, false)

	text, isErr := call(t, s, ToolSummarize, map[string]any{"path": "sales.csv"})
	assert.False(t, isErr)
	assert.Contains(t, text, "Rows: 2")
	assert.Contains(t, text, "Client Name")
}

func TestAnalyze(t *testing.T) {
	s, _ := setup(t, false)

	text, isErr := call(t, s, ToolAnalyze, map[string]any{"path": "sales.csv"})
	assert.False(t, isErr)
	assert.Contains(t, text, "Found 2 issue(s)")
	assert.Contains(t, text, `"type": "rename_column"`)
	assert.Contains(t, text, `"type": "fill_nulls"`)
}

func TestAnalyze_Clean(t *testing.T) {
	s, dir := setup(t, false)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clean.csv"), []byte("a,b\n1,2\n"), 0o600))

	text, isErr := call(t, s, ToolAnalyze, map[string]any{"path": "clean.csv"})
	assert.False(t, isErr)
	assert.Contains(t, text, "No issues found")
}

func TestExtractText(t *testing.T) {
	s, _ := setup(t, false)

	text, isErr := call(t, s, ToolExtractText, map[string]any{"path": "notes.txt"})
	assert.False(t, isErr)
	assert.Equal(t, "--- TXT CONTENT (notes.txt) ---\nhello", text)
}

func TestApplyEdits(t *testing.T) {
	tests := []struct {
		name       string
		operations any
	}{
		{
			name:       "json string",
			operations: `[{"type":"rename_column","column":"Client Name","new_name":"Client_Name"},{"type":"fill_nulls","column":"amount","value":"0"}]`,
		},
		{
			name: "decoded array",
			operations: []any{
				map[string]any{"type": "rename_column", "column": "Client Name", "new_name": "Client_Name"},
				map[string]any{"type": "fill_nulls", "column": "amount", "value": "0"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, dir := setup(t, false)

			text, isErr := call(t, s, ToolApplyEdits, map[string]any{"path": "sales.csv", "operations": tt.operations})
			require.False(t, isErr, text)

			saved := filepath.Join(dir, "sales_corrected_20240501_080000.csv")
			assert.Contains(t, text, "Applied 2 of 2 operation(s)")
			assert.Contains(t, text, saved)

			got, err := os.ReadFile(saved)
			require.NoError(t, err)
			assert.Equal(t, "Client_Name,amount\nAcme,0\nGlobex,5\n", string(got))

			orig, err := os.ReadFile(filepath.Join(dir, "sales.csv"))
			require.NoError(t, err)
			assert.Equal(t, salesCSV, string(orig))
		})
	}
}

func TestApplyEdits_CustomSuffixAndSkippedOps(t *testing.T) {
	s, dir := setup(t, false)

	text, isErr := call(t, s, ToolApplyEdits, map[string]any{
		"path":       "sales.csv",
		"operations": `[{"type":"fill_nulls","column":"missing"},{"type":"fill_nulls","column":"amount"}]`,
		"suffix":     "_fixed",
	})
	require.False(t, isErr, text)
	assert.Contains(t, text, "Applied 1 of 2 operation(s)")
	assert.FileExists(t, filepath.Join(dir, "sales_fixed_20240501_080000.csv"))
}

func TestToolErrors(t *testing.T) {
	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"missing path", ToolSummarize, map[string]any{}, "path is required"},
		{"escape base dir", ToolAnalyze, map[string]any{"path": "../secret.csv"}, errOutsideBase.Error()},
		{"absolute outside base", ToolExtractText, map[string]any{"path": "/etc/passwd"}, errOutsideBase.Error()},
		{"missing file", ToolSummarize, map[string]any{"path": "nope.csv"}, "Failed to read nope.csv"},
		{"unsupported document", ToolExtractText, map[string]any{"path": "sales.csv"}, "Failed to extract sales.csv"},
		{"missing operations", ToolApplyEdits, map[string]any{"path": "sales.csv"}, "operations is required"},
		{"empty operations", ToolApplyEdits, map[string]any{"path": "sales.csv", "operations": "[]"}, "must not be empty"},
		{"malformed operations", ToolApplyEdits, map[string]any{"path": "sales.csv", "operations": "{"}, "invalid operations"},
		{"suffix with separator", ToolApplyEdits, map[string]any{"path": "sales.csv", "operations": `[{"type":"fill_nulls","column":"amount"}]`, "suffix": "/../x"}, "path separators"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := setup(t, false)
			text, isErr := call(t, s, tt.tool, tt.args)
			assert.True(t, isErr)
			assert.Contains(t, text, tt.want)
		})
	}
}
