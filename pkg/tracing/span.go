// Package tracing records the stages of one ask (fuse, rank, remote call)
// as a small span tree carried in the context and logged through slog when
// the request finishes.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey struct{}

// Span times one stage. Children are the stages started under it.
type Span struct {
	name    string
	traceID string
	start   time.Time

	mu       sync.Mutex
	duration time.Duration
	attrs    []slog.Attr
	children []*Span
}

// StartSpan opens a root span; traceID is usually the request id.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := &Span{name: name, traceID: traceID, start: time.Now()}
	return context.WithValue(ctx, contextKey{}, s), s
}

// StartChildSpan opens a span under the one in ctx. Without a parent the
// span is detached: it works but is never logged.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{name: name, start: time.Now()}
	if parent := FromContext(ctx); parent != nil {
		s.traceID = parent.traceID
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, s), s
}

// FromContext returns the innermost open span, or nil.
func FromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(contextKey{}).(*Span)
	return s
}

func (s *Span) Name() string    { return s.name }
func (s *Span) TraceID() string { return s.traceID }

// End fixes the duration. Later calls move it forward.
func (s *Span) End() {
	s.mu.Lock()
	s.duration = time.Since(s.start)
	s.mu.Unlock()
}

func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// SetAttr records a key-value pair; setting a key again overwrites it.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.attrs {
		if s.attrs[i].Key == key {
			s.attrs[i] = slog.Any(key, value)
			return
		}
	}
	s.attrs = append(s.attrs, slog.Any(key, value))
}

// Log writes the whole tree as a single debug record, each child stage
// nested as a group under "stages".
func (s *Span) Log(logger *slog.Logger) {
	attrs := []slog.Attr{
		slog.String("trace_id", s.traceID),
		slog.String("span", s.name),
	}
	attrs = append(attrs, s.fields()...)
	if stages := s.stageGroups(); len(stages) > 0 {
		attrs = append(attrs, slog.Attr{Key: "stages", Value: slog.GroupValue(stages...)})
	}
	logger.LogAttrs(context.Background(), slog.LevelDebug, "trace", attrs...)
}

func (s *Span) fields() []slog.Attr {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]slog.Attr, 0, len(s.attrs)+1)
	out = append(out, slog.Int64("duration_ms", s.duration.Milliseconds()))
	return append(out, s.attrs...)
}

func (s *Span) stageGroups() []slog.Attr {
	children := s.Children()
	groups := make([]slog.Attr, 0, len(children))
	for _, c := range children {
		values := c.fields()
		if nested := c.stageGroups(); len(nested) > 0 {
			values = append(values, slog.Attr{Key: "stages", Value: slog.GroupValue(nested...)})
		}
		groups = append(groups, slog.Attr{Key: c.name, Value: slog.GroupValue(values...)})
	}
	return groups
}
