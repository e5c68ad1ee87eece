package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation  = "operation"
	KeyComponent  = "component"
	KeyApprovalID = "approval_id"
	KeyMessageID  = "message_id"
	KeySequence   = "sequence"
	KeyFile       = "file"
	KeyUserHash   = "user_hash"
	KeyDuration   = "duration"
	KeyStatus     = "status"
	KeyError      = "error"
)

// Status values for consistent logging.
// Note: These are intentionally duplicated from instrumentation package
// to avoid circular dependencies (instrumentation imports logging).
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// New builds a slog.Logger writing to w in the given format ("json" or "text").
// Unknown levels fall back to info. A nil writer means stderr.
func New(level, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithComponent returns a logger with the component attribute set.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String(KeyComponent, component))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// ApprovalID returns a slog attribute for an approval correlation id.
func ApprovalID(id string) slog.Attr {
	return slog.String(KeyApprovalID, id)
}

// MessageID returns a slog attribute for a mailbox message id.
func MessageID(id string) slog.Attr {
	return slog.String(KeyMessageID, id)
}

// Sequence returns a slog attribute for an inbound event sequence number.
func Sequence(seq int64) slog.Attr {
	return slog.Int64(KeySequence, seq)
}

// File returns a slog attribute for a file path.
func File(path string) slog.Attr {
	return slog.String(KeyFile, path)
}

// Duration returns a slog attribute for an elapsed time.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration(KeyDuration, d)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted from output.
// This allows safely passing Err(maybeNilErr) without adding empty attributes.
//
// Usage:
//
//	logger.Info("operation", logging.Err(err))  // Safe even if err is nil
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail returns a hashed representation of an email for logging purposes.
// This allows correlation of log entries without exposing PII.
func AnonymizeEmail(email string) string {
	if email == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(email))
	return "user:" + hex.EncodeToString(hash[:8])
}

// UserHash returns a slog attribute with the anonymized user identifier.
// Chat usernames and mailbox addresses go through here.
func UserHash(user string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeEmail(user))
}

// SanitizeToken returns a masked version of a token for logging.
// It returns a length indicator without exposing any token content.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}
