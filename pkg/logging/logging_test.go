package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		result := test.level.String()
		if result != test.expected {
			t.Errorf("LogLevel(%d).String() = %s, expected %s", test.level, result, test.expected)
		}
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{LogLevel(999), slog.LevelInfo}, // Default for unknown
	}

	for _, test := range tests {
		result := test.level.SlogLevel()
		if result != test.expected {
			t.Errorf("LogLevel(%d).SlogLevel() = %v, expected %v", test.level, result, test.expected)
		}
	}
}

func TestInitForCLI(t *testing.T) {
	var buf bytes.Buffer

	InitForCLI(LevelInfo, &buf)

	if defaultLogger == nil {
		t.Error("Expected defaultLogger to be set after InitForCLI")
	}

	Info("test-subsystem", "test message")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Error("Expected log message to appear in output")
	}
	if !strings.Contains(output, "test-subsystem") {
		t.Error("Expected subsystem to appear in output")
	}
}

func TestCLILevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	InitForCLI(LevelInfo, &buf)

	Debug("test", "debug message")
	Info("test", "info message")

	output := buf.String()
	if strings.Contains(output, "debug message") {
		t.Error("Debug message should be filtered out at INFO level")
	}
	if !strings.Contains(output, "info message") {
		t.Error("Info message should appear at INFO level")
	}
}

func TestErrorIncludesErrorAttribute(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf)

	Error("test-subsystem", errors.New("boom"), "operation failed")

	output := buf.String()
	if !strings.Contains(output, "operation failed") {
		t.Error("Expected message to appear in output")
	}
	if !strings.Contains(output, "boom") {
		t.Error("Expected wrapped error text to appear in output")
	}
}

func TestLogInternalNoopsBeforeInit(t *testing.T) {
	defaultLogger = nil

	// Must not panic even though no Init/InitForCLI call has happened yet.
	Debug("test-subsystem", "message before init")
	Info("test-subsystem", "message before init")
}

func TestTruncateID(t *testing.T) {
	tests := []struct {
		id       string
		expected string
	}{
		{"short", "short"},
		{"exactly8", "exactly8"},
		{"a-very-long-request-id-12345", "a-very-l..."},
	}

	for _, test := range tests {
		result := TruncateID(test.id)
		if result != test.expected {
			t.Errorf("TruncateID(%q) = %q, expected %q", test.id, result, test.expected)
		}
	}
}

func TestAuditWritesActionAndOutcome(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelInfo, &buf)

	Audit(AuditEvent{
		Action:  "execute_tool",
		Outcome: "DENY",
		AgentID: "tester",
		Target:  "abcd1234",
	})

	output := buf.String()
	for _, want := range []string{"[AUDIT]", "action=execute_tool", "outcome=DENY", "agent=tester", "target=abcd1234"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected audit line to contain %q, got: %s", want, output)
		}
	}
}

func TestAuditOmitsEmptyOptionalFields(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelInfo, &buf)

	Audit(AuditEvent{Action: "list_servers", Outcome: "ALLOW"})

	output := buf.String()
	if strings.Contains(output, "agent=") {
		t.Error("expected no agent= field when AgentID is empty")
	}
	if strings.Contains(output, "target=") {
		t.Error("expected no target= field when Target is empty")
	}
}

func TestNowReturnsNonZeroTime(t *testing.T) {
	if Now().IsZero() {
		t.Error("expected Now() to return a non-zero time")
	}
}
