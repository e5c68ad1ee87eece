package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New("debug", "json", &buf)
	logger.Debug("hello", ApprovalID("abc"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "hello" {
		t.Errorf("msg = %v, want hello", entry["msg"])
	}
	if entry[KeyApprovalID] != "abc" {
		t.Errorf("%s = %v, want abc", KeyApprovalID, entry[KeyApprovalID])
	}
}

func TestNew_TextFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New("warn", "text", &buf)
	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info line should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponent(New("info", "json", &buf), "poller")
	logger.Info("x")
	if !strings.Contains(buf.String(), `"component":"poller"`) {
		t.Errorf("component attribute missing: %q", buf.String())
	}
}

func TestWithOperation(t *testing.T) {
	result := WithOperation(slog.Default(), "worker.cycle")
	if result == nil {
		t.Error("WithOperation returned nil")
	}
}

func TestAttrs(t *testing.T) {
	tests := []struct {
		name    string
		attr    slog.Attr
		wantKey string
		wantVal string
	}{
		{"operation", Operation("resolve"), KeyOperation, "resolve"},
		{"approval", ApprovalID("id-1"), KeyApprovalID, "id-1"},
		{"message", MessageID("m-1"), KeyMessageID, "m-1"},
		{"sequence", Sequence(42), KeySequence, "42"},
		{"file", File("/tmp/a.csv"), KeyFile, "/tmp/a.csv"},
		{"status", Status(StatusSuccess), KeyStatus, StatusSuccess},
		{"duration", Duration(1500 * time.Millisecond), KeyDuration, "1.5s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.wantKey {
				t.Errorf("key = %q, want %q", tt.attr.Key, tt.wantKey)
			}
			if tt.attr.Value.String() != tt.wantVal {
				t.Errorf("value = %q, want %q", tt.attr.Value.String(), tt.wantVal)
			}
		})
	}
}

func TestErr(t *testing.T) {
	attr := Err(errors.New("test error"))
	if attr.Key != KeyError {
		t.Errorf("Err key = %q, want %q", attr.Key, KeyError)
	}
	if attr.Value.String() != "test error" {
		t.Errorf("Err value = %q, want %q", attr.Value.String(), "test error")
	}

	// Empty Group has empty key
	attr = Err(nil)
	if attr.Key != "" {
		t.Errorf("Err(nil) key = %q, want empty string (empty group)", attr.Key)
	}
}

func TestAnonymizeEmail(t *testing.T) {
	tests := []struct {
		email    string
		wantLen  int
		hasValue bool
	}{
		{"jane@example.com", 21, true}, // "user:" + 16 hex chars
		{"telegram_user", 21, true},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			result := AnonymizeEmail(tt.email)
			if !tt.hasValue {
				if result != "" {
					t.Errorf("AnonymizeEmail(%q) = %q, want empty string", tt.email, result)
				}
				return
			}
			if len(result) != tt.wantLen {
				t.Errorf("AnonymizeEmail(%q) length = %d, want %d", tt.email, len(result), tt.wantLen)
			}
			if !strings.HasPrefix(result, "user:") {
				t.Errorf("AnonymizeEmail(%q) should start with 'user:', got %q", tt.email, result)
			}
		})
	}

	if AnonymizeEmail("a@example.com") != AnonymizeEmail("a@example.com") {
		t.Error("AnonymizeEmail should return deterministic results")
	}
	if AnonymizeEmail("a@example.com") == AnonymizeEmail("b@example.com") {
		t.Error("Different inputs should produce different hashes")
	}
}

func TestUserHash(t *testing.T) {
	attr := UserHash("jane@example.com")
	if attr.Key != KeyUserHash {
		t.Errorf("UserHash key = %q, want %q", attr.Key, KeyUserHash)
	}
	if len(attr.Value.String()) != 21 {
		t.Errorf("UserHash value length = %d, want 21", len(attr.Value.String()))
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		token    string
		expected string
	}{
		{"", "<empty>"},
		{"abc123", "[token:6 chars]"},
		{"123456:ABC-DEF1234ghIkl", "[token:23 chars]"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if result := SanitizeToken(tt.token); result != tt.expected {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.token, result, tt.expected)
			}
		})
	}
}
