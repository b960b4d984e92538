package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  LogLevel
	}{
		{"error", ERROR},
		{"WARN", WARN},
		{"warning", WARN},
		{"info", INFO},
		{"debug", DEBUG},
		{"trace", TRACE},
		{"", INFO},
		{"bogus", INFO},
		{"  Info  ", INFO},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	t.Parallel()

	l := New(WARN, "", 10)
	l.SetConsoleOutput(false)

	l.Error("e")
	l.Warn("w")
	l.Info("i")
	l.Debug("d")

	entries := l.RecentEntries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 buffered entries, got %d", len(entries))
	}
	if entries[0].Level != ERROR || entries[1].Level != WARN {
		t.Errorf("unexpected levels: %v, %v", entries[0].Level, entries[1].Level)
	}
}

func TestLoggerBufferCap(t *testing.T) {
	t.Parallel()

	l := New(INFO, "", 3)
	l.SetConsoleOutput(false)

	for i := 0; i < 10; i++ {
		l.Info("msg", "n", i)
	}

	entries := l.RecentEntries()
	if len(entries) != 3 {
		t.Fatalf("expected buffer capped at 3, got %d", len(entries))
	}
	if entries[2].Context["n"] != 9 {
		t.Errorf("expected newest entry last, got n=%v", entries[2].Context["n"])
	}
}

func TestLoggerFileOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := New(INFO, dir, 10)
	l.SetConsoleOutput(false)

	l.Info("hello from test", "device_id", "dev-1")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "relaywatch.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Errorf("log file missing message, got: %s", data)
	}
	if !strings.Contains(string(data), "device_id=dev-1") {
		t.Errorf("log file missing context, got: %s", data)
	}
}
