// Package cmd implements the command-line interface for inboxrelay.
//
// This package provides the following commands:
//   - run: Relay unread email summaries to Telegram and handle approvals
//   - serve: Start the MCP server exposing the spreadsheet and document tools
//   - auth: Authorize Gmail access and store the OAuth token
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// The run command is the default command when no subcommand is specified.
package cmd
