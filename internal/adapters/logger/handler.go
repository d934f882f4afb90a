package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/muesli/termenv"
	"go.trai.ch/loam/internal/ui/output"
	"go.trai.ch/loam/internal/ui/style"
)

// PrettyHandler renders records as single colored lines for terminal use: a
// level glyph, the message, then dimmed key=value pairs. Install progress is
// chatty, so everything stays on one line per record.
type PrettyHandler struct {
	out    *termenv.Output
	level  slog.Leveler
	fields []slog.Attr
	prefix string
}

// NewPrettyHandler creates a PrettyHandler writing to w. A nil writer falls
// back to stderr.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if w == nil {
		w = os.Stderr
	}

	level := slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level.Level()
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(level)

	return &PrettyHandler{
		out:   output.New(w),
		level: levelVar,
	}
}

// Enabled reports whether records at the given level are emitted.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle renders one record.
//
//nolint:gocritic // slog.Handler takes slog.Record by value
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	head, color := h.decorate(r.Level, r.Message)

	pairs := make([]string, 0, len(h.fields)+r.NumAttrs())
	for _, attr := range h.fields {
		pairs = append(pairs, h.pair(attr))
	}
	r.Attrs(func(attr slog.Attr) bool {
		pairs = append(pairs, h.pair(attr))
		return true
	})

	line := h.out.String(head).Foreground(color).String()
	if len(pairs) > 0 {
		line += " " + h.out.String(strings.Join(pairs, " ")).Foreground(color).Faint().String()
	}

	_, err := h.out.WriteString(line + "\n")
	return err
}

func (h *PrettyHandler) decorate(level slog.Level, msg string) (string, termenv.Color) {
	switch level {
	case slog.LevelWarn:
		return style.Warning + " " + msg, termenv.RGBColor(string(style.Yellow))
	case slog.LevelError:
		return style.Cross + " " + msg, termenv.RGBColor(string(style.Red))
	default:
		return msg, termenv.RGBColor(string(style.Slate))
	}
}

func (h *PrettyHandler) pair(attr slog.Attr) string {
	key := attr.Key
	if h.prefix != "" {
		key = h.prefix + "." + key
	}
	return key + "=" + attr.Value.String()
}

// WithAttrs returns a handler carrying the given attributes on every record.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.fields = append(slices.Clip(h.fields), attrs...)
	return &next
}

// WithGroup returns a handler qualifying attribute keys with the group name.
// Nested groups accumulate dotted prefixes.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	next := *h
	if h.prefix != "" {
		next.prefix = h.prefix + "." + name
	} else {
		next.prefix = name
	}
	return &next
}
