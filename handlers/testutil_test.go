package handlers

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"relaywatch/server/storage"
)

// testLogger collects log lines so tests can assert on warnings.
type testLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *testLogger) record(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf("%s %s %v", level, msg, args))
}

func (l *testLogger) Debug(msg string, args ...interface{}) { l.record("DEBUG", msg, args) }
func (l *testLogger) Info(msg string, args ...interface{})  { l.record("INFO", msg, args) }
func (l *testLogger) Warn(msg string, args ...interface{})  { l.record("WARN", msg, args) }
func (l *testLogger) Error(msg string, args ...interface{}) { l.record("ERROR", msg, args) }

func (l *testLogger) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// newTestStore returns an in-memory device store.
func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// fixedClock returns a clock function pinned to the given unix second.
func fixedClock(unixSec int64) func() time.Time {
	return func() time.Time { return time.Unix(unixSec, 0).UTC() }
}
