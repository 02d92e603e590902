// Package events defines the messages a background worker sends to the
// presentation layer.
package events

import (
	"log/slog"
	"time"
)

// Event is one of LogEntry, ProgressUpdate or Completion.
type Event interface {
	isEvent()
}

// LogEntry is a user-facing log line
type LogEntry struct {
	Time    time.Time
	Level   slog.Level
	Message string
}

// IsError reports whether the entry should be shown as an error
func (e LogEntry) IsError() bool {
	return e.Level >= slog.LevelError
}

// ProgressUpdate carries overall progress in percent
type ProgressUpdate struct {
	Percent int
}

// Completion is always the last event of a run.
type Completion struct {
	Success bool
	Message string
	Err     error
	// Result is the worker's return value, if any.
	Result any
}

func (LogEntry) isEvent()       {}
func (ProgressUpdate) isEvent() {}
func (Completion) isEvent()     {}
