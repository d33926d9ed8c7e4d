// Package tracing provides request-scoped spans for the admin API. A span
// ties an operation's duration and attributes to the caller's request id and
// is emitted as one structured log line when it ends. Spans nest through the
// context for operations that fan out internally.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey struct{}

// Span is one timed operation. Attributes set during the operation travel
// with the closing log line.
type Span struct {
	name      string
	requestID string
	start     time.Time

	mu    sync.Mutex
	attrs []any
}

// StartSpan opens a root span tagged with the caller's request id and
// stores it in the returned context.
func StartSpan(ctx context.Context, name, requestID string) (context.Context, *Span) {
	span := &Span{name: name, requestID: requestID, start: time.Now()}
	return context.WithValue(ctx, contextKey{}, span), span
}

// StartChild opens a span nested under the one in ctx, inheriting its
// request id. Without a parent it behaves like StartSpan with no id.
func StartChild(ctx context.Context, name string) (context.Context, *Span) {
	span := &Span{name: name, start: time.Now()}
	if parent := FromContext(ctx); parent != nil {
		span.requestID = parent.requestID
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

// FromContext returns the current span, or nil.
func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// SetAttr attaches an attribute to the span's closing log line.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// End emits the span.
func (s *Span) End() {
	s.mu.Lock()
	attrs := append([]any{
		"span", s.name,
		"request_id", s.requestID,
		"duration_ms", time.Since(s.start).Milliseconds(),
	}, s.attrs...)
	s.mu.Unlock()
	slog.Info("span finished", attrs...)
}
