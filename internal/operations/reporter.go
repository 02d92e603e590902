package operations

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"zentaocli/pkg/contracts/events"
)

// Reporter is the single outbound path of a worker. Every log record goes to
// the sink logger and, at Info level and above, to the event channel. Sends
// block until the consumer reads or the reporter's context ends.
type Reporter struct {
	ctx    context.Context
	ch     chan events.Event
	logger *slog.Logger

	mu       sync.RWMutex
	closed   bool
	once     sync.Once
	progress int
}

// NewReporter creates a reporter with a channel of the given capacity. ctx
// bounds the consumer's lifetime, not the run: a cancelled run still delivers
// its Completion while ctx is alive.
func NewReporter(ctx context.Context, buffer int, sink *slog.Logger) *Reporter {
	if sink == nil {
		sink = slog.Default()
	}
	if buffer < 0 {
		buffer = 0
	}
	r := &Reporter{
		ctx: ctx,
		ch:  make(chan events.Event, buffer),
	}
	r.logger = slog.New(&reportHandler{sink: sink.Handler(), r: r})
	return r
}

// Events returns the channel the presentation layer drains. It is closed
// after the Completion event.
func (r *Reporter) Events() <-chan events.Event {
	return r.ch
}

// Logger returns a logger whose records are also delivered as LogEntry
// events.
func (r *Reporter) Logger() *slog.Logger {
	return r.logger
}

func (r *Reporter) Info(msg string, args ...any) {
	r.logger.Log(r.ctx, slog.LevelInfo, msg, args...)
}

func (r *Reporter) Warn(msg string, args ...any) {
	r.logger.Log(r.ctx, slog.LevelWarn, msg, args...)
}

func (r *Reporter) Error(msg string, args ...any) {
	r.logger.Log(r.ctx, slog.LevelError, msg, args...)
}

// Progress reports overall progress, clamped to 0..100.
func (r *Reporter) Progress(percent int) {
	percent = min(max(percent, 0), 100)
	r.mu.Lock()
	r.progress = percent
	r.mu.Unlock()
	r.send(events.ProgressUpdate{Percent: percent})
}

// LastProgress returns the last reported percentage
func (r *Reporter) LastProgress() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.progress
}

// Complete sends the final event and closes the channel. Later calls are
// ignored.
func (r *Reporter) Complete(success bool, message string, err error, result any) {
	r.once.Do(func() {
		r.send(events.Completion{Success: success, Message: message, Err: err, Result: result})
		r.mu.Lock()
		r.closed = true
		close(r.ch)
		r.mu.Unlock()
	})
}

func (r *Reporter) send(ev events.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.ch <- ev:
	case <-r.ctx.Done():
	}
}

// reportHandler fans records out to the sink and the event channel.
type reportHandler struct {
	sink slog.Handler
	r    *Reporter
}

func (h *reportHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo || h.sink.Enabled(ctx, level)
}

func (h *reportHandler) Handle(ctx context.Context, rec slog.Record) error {
	var err error
	if h.sink.Enabled(ctx, rec.Level) {
		err = h.sink.Handle(ctx, rec.Clone())
	}
	if rec.Level >= slog.LevelInfo {
		h.r.send(events.LogEntry{
			Time:    recordTime(rec),
			Level:   rec.Level,
			Message: userMessage(rec),
		})
	}
	return err
}

func (h *reportHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &reportHandler{sink: h.sink.WithAttrs(attrs), r: h.r}
}

func (h *reportHandler) WithGroup(name string) slog.Handler {
	return &reportHandler{sink: h.sink.WithGroup(name), r: h.r}
}

func recordTime(rec slog.Record) time.Time {
	if rec.Time.IsZero() {
		return time.Now()
	}
	return rec.Time
}

// userMessage renders the message followed by the record's own attributes.
func userMessage(rec slog.Record) string {
	if rec.NumAttrs() == 0 {
		return rec.Message
	}
	var b strings.Builder
	b.WriteString(rec.Message)
	rec.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%s", a.Key, a.Value.Resolve().String())
		return true
	})
	return b.String()
}
