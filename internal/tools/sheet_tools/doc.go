// Package sheet_tools exposes the spreadsheet checks and document extraction
// used by the relay as MCP tools, so an assistant can inspect and correct
// downloaded attachments directly.
//
// Paths are resolved against a base directory; anything outside it is
// rejected.
package sheet_tools
