package observe

import (
	"context"
	"log/slog"
	"strings"
)

// FilterHandler is a [slog.Handler] that drops records whose message or
// string attributes contain any of a fixed set of substrings. It is meant to
// be scoped to a single noisy call, never installed process-wide.
type FilterHandler struct {
	next     slog.Handler
	suppress []string
}

// NewFilterHandler wraps next, dropping records that match any of suppress.
func NewFilterHandler(next slog.Handler, suppress ...string) *FilterHandler {
	return &FilterHandler{next: next, suppress: suppress}
}

// WithSuppressed returns a logger derived from l that drops records matching
// any of suppress. With no substrings, l is returned as is.
func WithSuppressed(l *slog.Logger, suppress ...string) *slog.Logger {
	if len(suppress) == 0 {
		return l
	}
	return slog.New(NewFilterHandler(l.Handler(), suppress...))
}

// Enabled implements [slog.Handler].
func (h *FilterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements [slog.Handler].
func (h *FilterHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.matches(r.Message) {
		return nil
	}
	drop := false
	r.Attrs(func(a slog.Attr) bool {
		if s := a.Value.Resolve().String(); h.matches(s) {
			drop = true
			return false
		}
		return true
	})
	if drop {
		return nil
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs implements [slog.Handler].
func (h *FilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &FilterHandler{next: h.next.WithAttrs(attrs), suppress: h.suppress}
}

// WithGroup implements [slog.Handler].
func (h *FilterHandler) WithGroup(name string) slog.Handler {
	return &FilterHandler{next: h.next.WithGroup(name), suppress: h.suppress}
}

func (h *FilterHandler) matches(s string) bool {
	for _, sub := range h.suppress {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
