// Package notify delivers human-readable outcome messages from the task
// engine to the user.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Severity classifies a notification.
type Severity string

const (
	Info  Severity = "info"
	Warn  Severity = "warn"
	Error Severity = "error"
)

// Notification is one outcome message.
type Notification struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Sink consumes notifications. Implementations must be safe for concurrent use.
type Sink interface {
	Notify(n Notification)
}

// Infof builds an info notification.
func Infof(format string, args ...interface{}) Notification {
	return Notification{Severity: Info, Message: fmt.Sprintf(format, args...)}
}

// Warnf builds a warning notification.
func Warnf(format string, args ...interface{}) Notification {
	return Notification{Severity: Warn, Message: fmt.Sprintf(format, args...)}
}

// Errorf builds an error notification.
func Errorf(format string, args ...interface{}) Notification {
	return Notification{Severity: Error, Message: fmt.Sprintf(format, args...)}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(Notification) {}

// LogSink writes notifications to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Notify(n Notification) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	switch n.Severity {
	case Warn:
		level = slog.LevelWarn
	case Error:
		level = slog.LevelError
	}
	logger.Log(context.Background(), level, n.Message, "source", "notify")
}

// Multi fans a notification out to every sink.
type Multi []Sink

func (m Multi) Notify(n Notification) {
	for _, s := range m {
		if s != nil {
			s.Notify(n)
		}
	}
}

// Recorder keeps notifications in memory. Useful in tests and for the API.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Reset forgets recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

// MinSeverity forwards only notifications at or above a severity.
type MinSeverity struct {
	Min  Severity
	Next Sink
}

func (m MinSeverity) Notify(n Notification) {
	if rank(n.Severity) >= rank(m.Min) {
		m.Next.Notify(n)
	}
}

func rank(s Severity) int {
	switch s {
	case Warn:
		return 1
	case Error:
		return 2
	default:
		return 0
	}
}
