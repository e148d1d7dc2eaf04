// Package logx provides the colored slog handler and verbosity helpers
// shared by the batch renderer and the preview server.
package logx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/muesli/termenv"
)

// UserLevel is the default level for loggers built by this package
var UserLevel = slog.LevelInfo

// LevelFromFlags returns the level implied by the very-verbose, verbose and
// quiet command line flags, in that order of precedence.
func LevelFromFlags(vv, v, q bool) slog.Level {
	switch {
	case vv:
		return slog.LevelDebug
	case v:
		return slog.LevelInfo
	case q:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Handler is a slog.Handler that writes one line per record and colors the
// level with termenv when the output is a terminal.
type Handler struct {
	mu     *sync.Mutex
	w      io.Writer
	output *termenv.Output
	level  slog.Leveler
	attrs  []slog.Attr
	group  string
}

// NewHandler creates a handler writing to w at the given level
func NewHandler(w io.Writer, level slog.Leveler) *Handler {
	return &Handler{
		mu:     &sync.Mutex{},
		w:      w,
		output: termenv.NewOutput(w),
		level:  level,
	}
}

// Setup installs a handler on stderr as the default logger and returns it
func Setup(level slog.Level) *slog.Logger {
	UserLevel = level
	logger := slog.New(NewHandler(os.Stderr, level))
	slog.SetDefault(logger)
	return logger
}

// Enabled implements slog.Handler
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	if !r.Time.IsZero() {
		b.WriteString(r.Time.Format(time.TimeOnly))
		b.WriteByte(' ')
	}
	b.WriteString(h.levelString(r.Level))
	b.WriteByte(' ')
	b.WriteString(r.Message)

	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.group, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// WithAttrs implements slog.Handler
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		nh.attrs = append(nh.attrs, a)
	}
	return &nh
}

// WithGroup implements slog.Handler
func (h *Handler) WithGroup(name string) slog.Handler {
	nh := *h
	if nh.group != "" {
		nh.group += "." + name
	} else {
		nh.group = name
	}
	return &nh
}

func (h *Handler) levelString(level slog.Level) string {
	s := h.output.String(fmt.Sprintf("%-5s", level.String()))
	switch {
	case level >= slog.LevelError:
		return s.Foreground(h.output.Color("1")).Bold().String()
	case level >= slog.LevelWarn:
		return s.Foreground(h.output.Color("3")).String()
	case level >= slog.LevelInfo:
		return s.Foreground(h.output.Color("4")).String()
	default:
		return s.Faint().String()
	}
}

func writeAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	b.WriteByte(' ')
	if group != "" {
		b.WriteString(group)
		b.WriteByte('.')
	}
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(a.Value.String())
}

// Success prints a colored confirmation line for interactive command output
func Success(w io.Writer, format string, args ...any) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w, out.String(fmt.Sprintf(format, args...)).Foreground(out.Color("2")).String())
}
