package cmd

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxrelay/internal/sheet"
	"github.com/teemow/inboxrelay/internal/tools/sheet_tools"
)

func newGenerateDocsCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate markdown documentation for the MCP tools served by "inboxrelay serve".
Write tools are included and marked as requiring --yolo.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			markdown, err := toolsMarkdown()
			if err != nil {
				return err
			}
			if outputFile == "" {
				fmt.Fprint(cmd.OutOrStdout(), markdown)
				return nil
			}
			if err := os.WriteFile(outputFile, []byte(markdown), 0o644); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Documentation written to: %s\n", outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

// toolsMarkdown registers every tool, write operations included, on a scratch
// server and renders their documentation.
func toolsMarkdown() (string, error) {
	mcpSrv := mcpserver.NewMCPServer("inboxrelay", version,
		mcpserver.WithToolCapabilities(true),
	)

	deps := sheet_tools.Deps{Processor: sheet.New(sheet.Config{})}
	if err := sheet_tools.RegisterSheetTools(mcpSrv, deps, false); err != nil {
		return "", fmt.Errorf("failed to register sheet tools: %w", err)
	}

	serverTools := mcpSrv.ListTools()
	tools := make([]mcp.Tool, 0, len(serverTools))
	for _, serverTool := range serverTools {
		tools = append(tools, serverTool.Tool)
	}

	return generateToolsMarkdown(tools), nil
}

// toolCategories maps a tool name prefix to its documentation section.
var toolCategories = map[string]string{
	"sheet":    "Spreadsheet Tools",
	"document": "Document Tools",
}

// writeTools are only registered when serve runs with --yolo.
var writeTools = map[string]bool{
	sheet_tools.ToolApplyEdits: true,
}

func generateToolsMarkdown(tools []mcp.Tool) string {
	byCategory := make(map[string][]mcp.Tool)
	for _, tool := range tools {
		c := getCategoryFromToolName(tool.Name)
		byCategory[c] = append(byCategory[c], tool)
	}
	categories := slices.Sorted(maps.Keys(byCategory))

	var sb strings.Builder
	sb.WriteString("# MCP Tools Reference\n\n")
	sb.WriteString("Tools exposed by `inboxrelay serve`. This file is generated by `inboxrelay generate-docs`.\n\n")

	sb.WriteString("## Table of Contents\n\n")
	for _, c := range categories {
		fmt.Fprintf(&sb, "- [%s](#%s)\n", c, strings.ToLower(strings.ReplaceAll(c, " ", "-")))
	}

	sb.WriteString("\n## Paths\n\n")
	sb.WriteString("Every `path` argument is resolved against the download directory (`worker.download_dir`). ")
	sb.WriteString("Paths that leave it are rejected.\n\n")

	for _, c := range categories {
		group := byCategory[c]
		slices.SortFunc(group, func(a, b mcp.Tool) int { return strings.Compare(a.Name, b.Name) })

		fmt.Fprintf(&sb, "## %s\n\n", c)
		for _, tool := range group {
			sb.WriteString(generateToolMarkdown(tool))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func getCategoryFromToolName(name string) string {
	prefix, _, _ := strings.Cut(name, "_")
	if c, ok := toolCategories[prefix]; ok {
		return c
	}
	return "Other"
}

func generateToolMarkdown(tool mcp.Tool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### %s\n\n", tool.Name)
	if writeTools[tool.Name] {
		sb.WriteString("_Writes files. Available only with `serve --yolo`._\n\n")
	}
	if tool.Description != "" {
		sb.WriteString(tool.Description + "\n\n")
	}

	props := tool.InputSchema.Properties
	if len(props) == 0 {
		return sb.String()
	}

	sb.WriteString("**Arguments:**\n")
	for _, name := range slices.Sorted(maps.Keys(props)) {
		prop, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		need := "optional"
		if slices.Contains(tool.InputSchema.Required, name) {
			need = "required"
		}
		desc, _ := prop["description"].(string)
		if desc == "" {
			kind, _ := prop["type"].(string)
			if kind == "" {
				kind = "any"
			}
			desc = kind + " parameter"
		}
		fmt.Fprintf(&sb, "- `%s` (%s): %s\n", name, need, desc)
	}
	sb.WriteString("\n")
	return sb.String()
}
