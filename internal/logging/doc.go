// Package logging provides structured logging utilities for the inboxrelay application.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Usage Patterns
//
// Build the process logger from configuration:
//
//	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
//	slog.SetDefault(logger)
//
// Attach correlation attributes:
//
//	logger.Info("approval resolved",
//	    logging.ApprovalID(id),
//	    logging.Status(logging.StatusSuccess))
//
// # Security Considerations
//
// Chat usernames and mailbox addresses are hashed before logging, and the bot
// token is only ever logged through SanitizeToken.
package logging
