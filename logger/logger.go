// Package logger provides leveled, structured logging for the RelayWatch
// server. Messages carry alternating key/value context pairs and are written
// to the console and, when a log directory is configured, to a log file.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	ERROR LogLevel = iota
	WARN
	INFO
	DEBUG
	TRACE
)

var levelNames = map[LogLevel]string{
	ERROR: "ERROR",
	WARN:  "WARN",
	INFO:  "INFO",
	DEBUG: "DEBUG",
	TRACE: "TRACE",
}

// ParseLevel converts a level name to a LogLevel. Unknown names map to INFO.
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "error":
		return ERROR
	case "warn", "warning":
		return WARN
	case "debug":
		return DEBUG
	case "trace":
		return TRACE
	default:
		return INFO
	}
}

// LevelToString returns the canonical name for a level.
func LevelToString(level LogLevel) string {
	if name, ok := levelNames[level]; ok {
		return name
	}
	return "INFO"
}

// Entry is a single log record kept in the in-memory buffer.
type Entry struct {
	Timestamp time.Time
	Level     LogLevel
	Message   string
	Context   map[string]interface{}
}

// Logger writes leveled log entries to console and file, and retains the
// most recent entries in a ring buffer for diagnostics.
type Logger struct {
	mu            sync.Mutex
	level         LogLevel
	logDir        string
	file          *os.File
	buffer        []Entry
	maxBufferSize int
	console       bool
}

// New creates a Logger. logDir may be empty to disable file output.
func New(level LogLevel, logDir string, maxBufferSize int) *Logger {
	return &Logger{
		level:         level,
		logDir:        logDir,
		buffer:        make([]Entry, 0, maxBufferSize),
		maxBufferSize: maxBufferSize,
		console:       true,
	}
}

// SetConsoleOutput enables or disables console output.
func (l *Logger) SetConsoleOutput(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.console = enabled
}

// SetLevel changes the current log level.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Error logs an error level message
func (l *Logger) Error(msg string, context ...interface{}) { l.log(ERROR, msg, context...) }

// Warn logs a warning level message
func (l *Logger) Warn(msg string, context ...interface{}) { l.log(WARN, msg, context...) }

// Info logs an info level message
func (l *Logger) Info(msg string, context ...interface{}) { l.log(INFO, msg, context...) }

// Debug logs a debug level message
func (l *Logger) Debug(msg string, context ...interface{}) { l.log(DEBUG, msg, context...) }

// Trace logs a trace level message
func (l *Logger) Trace(msg string, context ...interface{}) { l.log(TRACE, msg, context...) }

// RecentEntries returns a copy of the buffered log entries.
func (l *Logger) RecentEntries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.buffer))
	copy(out, l.buffer)
	return out
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func (l *Logger) log(level LogLevel, msg string, context ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level > l.level {
		return
	}

	ctx := make(map[string]interface{}, len(context)/2)
	for i := 0; i+1 < len(context); i += 2 {
		key := fmt.Sprintf("%v", context[i])
		ctx[key] = context[i+1]
	}

	entry := Entry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   msg,
		Context:   ctx,
	}

	l.buffer = append(l.buffer, entry)
	if len(l.buffer) > l.maxBufferSize {
		l.buffer = l.buffer[1:]
	}

	line := formatEntry(entry)
	if l.console {
		fmt.Println(line)
	}
	l.writeToFile(line)
}

func formatEntry(entry Entry) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(entry.Timestamp.Format("2006-01-02 15:04:05"))
	b.WriteString("] [")
	b.WriteString(levelNames[entry.Level])
	b.WriteString("] ")
	b.WriteString(entry.Message)
	if len(entry.Context) > 0 {
		b.WriteString(" |")
		for k, v := range entry.Context {
			fmt.Fprintf(&b, " %s=%v", k, v)
		}
	}
	return b.String()
}

func (l *Logger) writeToFile(line string) {
	if l.logDir == "" {
		return
	}
	if l.file == nil {
		if err := os.MkdirAll(l.logDir, 0755); err != nil {
			return
		}
		f, err := os.OpenFile(filepath.Join(l.logDir, "relaywatch.log"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return
		}
		l.file = f
	}
	fmt.Fprintln(l.file, line)
}
