package testutil

import (
	"fmt"
	"sync"
)

// LogEntry is one captured log line.
type LogEntry struct {
	Level string
	Msg   string
	Attrs map[string]any
}

// CaptureLogger implements logging.Logger and records every entry.
type CaptureLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewCaptureLogger creates an empty CaptureLogger.
func NewCaptureLogger() *CaptureLogger { return &CaptureLogger{} }

func (l *CaptureLogger) Debug(msg string, args ...any) { l.add("DEBUG", msg, args) }
func (l *CaptureLogger) Info(msg string, args ...any)  { l.add("INFO", msg, args) }
func (l *CaptureLogger) Warn(msg string, args ...any)  { l.add("WARN", msg, args) }
func (l *CaptureLogger) Error(msg string, args ...any) { l.add("ERROR", msg, args) }

func (l *CaptureLogger) add(level, msg string, args []any) {
	attrs := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		attrs[fmt.Sprint(args[i])] = args[i+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Attrs: attrs})
}

// Entries returns a copy of all captured entries.
func (l *CaptureLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogEntry(nil), l.entries...)
}

// Find returns all entries with the given level and message.
func (l *CaptureLogger) Find(level, msg string) []LogEntry {
	var out []LogEntry
	for _, e := range l.Entries() {
		if e.Level == level && e.Msg == msg {
			out = append(out, e)
		}
	}
	return out
}
