package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Iron-Ham/mproc/internal/errors"
)

func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger(t *testing.T) {
	t.Run("creates log file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "mproc.log")

		logger, err := NewLogger(Options{File: path, Level: LevelDebug})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Errorf("log file was not created at %s", path)
		}
	})

	t.Run("defaults to INFO level for invalid level string", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogger(Options{Writer: &buf, Level: "nonsense"})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}

		logger.Debug("hidden")
		logger.Info("shown")

		entries := decodeLines(t, buf.Bytes())
		if len(entries) != 1 || entries[0]["msg"] != "shown" {
			t.Errorf("entries = %v, want only the INFO entry", entries)
		}
	})
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Options{Writer: &buf, Level: LevelWarn})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	entries := decodeLines(t, buf.Bytes())
	if len(entries) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(entries))
	}
	if entries[0]["level"] != "WARN" || entries[1]["level"] != "ERROR" {
		t.Errorf("levels = %v, %v", entries[0]["level"], entries[1]["level"])
	}
	if logger.Enabled(LevelInfo) {
		t.Error("Enabled(INFO) = true for WARN logger")
	}
	if !logger.Enabled(LevelError) {
		t.Error("Enabled(ERROR) = false for WARN logger")
	}
}

func TestLogger_ContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Options{Writer: &buf, Level: LevelDebug})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	child := logger.WithProcess("abc", "program sleep").WithStream("stdout").With("pid", 42, 7, "ignored")
	child.Info("line", "text", "hello")
	logger.Info("root")

	entries := decodeLines(t, buf.Bytes())
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	got := entries[0]
	for key, want := range map[string]any{
		"process_id": "abc",
		"program":    "program sleep",
		"stream":     "stdout",
		"pid":        float64(42),
		"text":       "hello",
	} {
		if got[key] != want {
			t.Errorf("%s = %v, want %v", key, got[key], want)
		}
	}

	if _, ok := entries[1]["process_id"]; ok {
		t.Error("root logger should not inherit child attributes")
	}
}

func TestLogger_WithNoArgsReturnsSameLogger(t *testing.T) {
	logger := NopLogger()
	if logger.With() != logger {
		t.Error("With() without args should return the receiver")
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Error("discarded")
	if logger.Enabled(LevelError) {
		t.Error("NopLogger should not enable any level")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
}

func TestValidLevels(t *testing.T) {
	levels := ValidLevels()
	if len(levels) != 4 {
		t.Fatalf("ValidLevels() = %v", levels)
	}
	for _, level := range levels {
		if parseLevel(level).String() != level {
			t.Errorf("parseLevel(%q) = %v", level, parseLevel(level))
		}
	}
}

func TestLogger_ReportError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantLevel    string
		wantSeverity string
	}{
		{
			name:         "critical logs at error",
			err:          errors.NewDestroyFailedError("sleep 30", 42, errors.New("still alive")),
			wantLevel:    "ERROR",
			wantSeverity: "critical",
		},
		{
			name:         "warning logs at warn",
			err:          errors.NewValidationError("must be positive").WithField("console_buffer_max_lines"),
			wantLevel:    "WARN",
			wantSeverity: "warning",
		},
		{
			name:         "plain error logs at error",
			err:          errors.New("boom"),
			wantLevel:    "ERROR",
			wantSeverity: "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := NewLogger(Options{Writer: &buf, Level: LevelDebug})
			if err != nil {
				t.Fatalf("NewLogger failed: %v", err)
			}

			logger.ReportError("operation failed", tt.err, "pid", 42)

			entries := decodeLines(t, buf.Bytes())
			if len(entries) != 1 {
				t.Fatalf("got %d entries, want 1", len(entries))
			}
			entry := entries[0]
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", entry["level"], tt.wantLevel)
			}
			if entry["severity"] != tt.wantSeverity {
				t.Errorf("severity = %v, want %s", entry["severity"], tt.wantSeverity)
			}
			if entry["error"] != tt.err.Error() {
				t.Errorf("error = %v, want %q", entry["error"], tt.err.Error())
			}
			if entry["pid"] != float64(42) {
				t.Errorf("pid = %v, want 42", entry["pid"])
			}
		})
	}

	t.Run("nil error logs nothing", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogger(Options{Writer: &buf, Level: LevelDebug})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		logger.ReportError("nothing", nil)
		if buf.Len() != 0 {
			t.Errorf("output = %q, want empty", buf.String())
		}
	})
}
