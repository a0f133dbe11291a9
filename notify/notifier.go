package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Notifier delivers notifications. Implementations must not block the caller
// for longer than a single delivery attempt.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) {}

// Log writes notifications to a zap logger.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, n Notification) {
	fields := []zap.Field{
		zap.String("kind", string(n.Kind)),
		zap.String("title", n.Title),
	}
	if n.Message != "" {
		fields = append(fields, zap.String("message", n.Message))
	}
	if n.TxHash != "" {
		fields = append(fields, zap.String("tx", n.TxHash))
	}

	switch n.Severity {
	case SeverityError:
		l.logger.Error("notification", fields...)
	case SeverityWarning:
		l.logger.Warn("notification", fields...)
	default:
		l.logger.Info("notification", fields...)
	}
}

// Multi fans a notification out to every notifier.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}

// Recorder keeps every notification in memory, newest last.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
	limit int
}

// NewRecorder returns a recorder that keeps at most limit items; zero keeps
// everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	if r.limit > 0 && len(r.items) > r.limit {
		r.items = r.items[len(r.items)-r.limit:]
	}
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]Kind, 0, len(r.items))
	for _, n := range r.items {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
