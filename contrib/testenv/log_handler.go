// Package testenv holds helpers shared by the tests and examples of the
// record codecs.
package testenv

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LogHandler is a slog.Handler printing one line per message, without a
// timestamp, so that codec warnings can be asserted in examples:
//
//	[0] WARN: delta operation skipped field=list, reason=position 1 is out of range
//
// The index counts printed messages and is shared by every handler derived
// through WithAttrs or WithGroup.
type LogHandler struct {
	out     *output
	attrs   []string
	prefix  string
	level   slog.Level
	ignored []string
}

type output struct {
	mu    sync.Mutex
	w     io.Writer
	index int
}

type LogOption func(*LogHandler)

// WithWriter prints to w instead of standard output.
func WithWriter(w io.Writer) LogOption {
	return func(h *LogHandler) {
		h.out.w = w
	}
}

// WithMinLevel drops messages below level.
func WithMinLevel(level slog.Level) LogOption {
	return func(h *LogHandler) {
		h.level = level
	}
}

// WithIgnoredPrefixes drops messages starting with any of prefixes.
func WithIgnoredPrefixes(prefixes ...string) LogOption {
	return func(h *LogHandler) {
		h.ignored = append(h.ignored, prefixes...)
	}
}

// NewLogHandler prints every level to standard output unless configured
// otherwise.
func NewLogHandler(opts ...LogOption) *LogHandler {
	h := &LogHandler{
		out:   &output{w: os.Stdout},
		level: slog.LevelDebug,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

//nolint:gocritic
func (h *LogHandler) Handle(_ context.Context, r slog.Record) error {
	for _, prefix := range h.ignored {
		if strings.HasPrefix(r.Message, prefix) {
			return nil
		}
	}

	parts := append([]string(nil), h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		parts = appendAttr(parts, h.prefix, a)
		return true
	})

	line := r.Message
	if len(parts) > 0 {
		line += " " + strings.Join(parts, ", ")
	}

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	_, err := fmt.Fprintf(h.out.w, "[%d] %s: %s\n", h.out.index, r.Level, line)
	h.out.index++
	return err
}

// appendAttr flattens groups into dotted keys.
func appendAttr(parts []string, prefix string, a slog.Attr) []string {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() != slog.KindGroup {
		return append(parts, fmt.Sprintf("%s%s=%v", prefix, a.Key, a.Value))
	}
	if a.Key != "" {
		prefix += a.Key + "."
	}
	for _, ga := range a.Value.Group() {
		parts = appendAttr(parts, prefix, ga)
	}
	return parts
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]string(nil), h.attrs...)
	for _, a := range attrs {
		next.attrs = appendAttr(next.attrs, h.prefix, a)
	}
	return &next
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}
