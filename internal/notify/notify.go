// Package notify delivers user-facing notifications (confirmation toasts, capacity
// and validation alerts, upload failures) to whoever is listening.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Level classifies a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	// LevelAlert is a blocking message the user must acknowledge.
	LevelAlert Level = "alert"
)

// Channel is the redis pub/sub channel notifications are published on.
const Channel = "formbuilder:notify"

type Notification struct {
	Level      Level     `json:"level"`
	Message    string    `json:"message"`
	TemplateID string    `json:"template_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	At         time.Time `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Send stamps n and hands it to notifier, logging instead of failing when delivery errors.
func Send(ctx context.Context, notifier Notifier, logger *slog.Logger, n Notification) {
	if notifier == nil {
		return
	}
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	if err := notifier.Notify(ctx, n); err != nil && logger != nil {
		logger.Error("deliver notification failed",
			slog.String("level", string(n.Level)),
			slog.Any("error", err),
		)
	}
}

// Log writes notifications to a slog.Logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(ctx context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.Level != LevelSuccess {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "notification",
		slog.String("level", string(n.Level)),
		slog.String("message", n.Message),
		slog.String("template_id", n.TemplateID),
		slog.String("session_id", n.SessionID),
	)
	return nil
}

// Redis publishes notifications as JSON on Channel.
type Redis struct {
	Client  redis.UniversalClient
	Channel string
}

func (r Redis) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	channel := r.Channel
	if channel == "" {
		channel = Channel
	}
	if err := r.Client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Multi fans a notification out to every notifier and returns the first error.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var first error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	return nil
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Count returns how many notifications of level were recorded.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.items {
		if item.Level == level {
			n++
		}
	}
	return n
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}
