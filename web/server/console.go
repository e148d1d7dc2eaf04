package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ConsoleMessage represents a console message with timestamp
type ConsoleMessage struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // "debug", "info", "warning", "error"
}

// ConsoleHandler is a slog.Handler that passes records on to another handler
// and copies them to the browser console channel
type ConsoleHandler struct {
	next        slog.Handler
	consoleChan chan<- ConsoleMessage
	attrs       []slog.Attr
}

// NewConsoleHandler wraps next. A nil next only feeds the console channel.
func NewConsoleHandler(next slog.Handler, consoleChan chan<- ConsoleMessage) *ConsoleHandler {
	return &ConsoleHandler{next: next, consoleChan: consoleChan}
}

// Enabled defers to the wrapped handler, or accepts Info and above without one
func (h *ConsoleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.next != nil {
		return h.next.Enabled(ctx, level)
	}
	return level >= slog.LevelInfo
}

// Handle writes the record to the wrapped handler and sends it to the console
func (h *ConsoleHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.next != nil {
		err = h.next.Handle(ctx, r)
	}

	// Send to web console if channel is available (non-blocking)
	if h.consoleChan != nil {
		select {
		case h.consoleChan <- ConsoleMessage{
			Message:   h.format(r),
			Timestamp: r.Time,
			Level:     consoleLevel(r.Level),
		}:
		default:
			// Channel full, skip (don't block)
		}
	}
	return err
}

// WithAttrs implements slog.Handler
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.next
	if next != nil {
		next = next.WithAttrs(attrs)
	}
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &ConsoleHandler{next: next, consoleChan: h.consoleChan, attrs: merged}
}

// WithGroup implements slog.Handler. Groups only affect the wrapped handler.
func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	next := h.next
	if next != nil {
		next = next.WithGroup(name)
	}
	return &ConsoleHandler{next: next, consoleChan: h.consoleChan, attrs: h.attrs}
}

func (h *ConsoleHandler) format(r slog.Record) string {
	var b strings.Builder
	b.WriteString(r.Message)
	write := func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Resolve())
		return true
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(write)
	return b.String()
}

func consoleLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warning"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
