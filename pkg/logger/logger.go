// Package logger builds the slog loggers used by the client and the CLI.
//
// Text output highlights warnings in yellow and errors in red when writing to
// a terminal, and lifecycle messages (registered, unregistered, renewed) in green.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

// Config configures a logger.
type Config struct {
	Level  slog.Level
	Format string // text or json
	Color  bool
	Output io.Writer
}

// NewDefaultLogger returns a colored text logger on stderr.
func NewDefaultLogger(level slog.Level) *slog.Logger {
	return NewLogger(Config{Level: level, Format: "text", Color: true})
}

// NewLogger creates a logger from cfg. Color is only applied to text output
// written to a terminal.
func NewLogger(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	if cfg.Color && isTerminal(out) {
		return slog.New(NewColorHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ColorHandler is a text handler that colors whole records by level.
type ColorHandler struct {
	mu   *sync.Mutex
	out  io.Writer
	opts *slog.HandlerOptions
	text slog.Handler
	buf  *lineBuffer
}

// NewColorHandler creates a ColorHandler writing to out.
func NewColorHandler(out io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	buf := &lineBuffer{}
	return &ColorHandler{
		mu:   &sync.Mutex{},
		out:  out,
		opts: opts,
		text: slog.NewTextHandler(buf, opts),
		buf:  buf,
	}
}

// Enabled implements slog.Handler
func (h *ColorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.text.Enabled(ctx, level)
}

// Handle implements slog.Handler
func (h *ColorHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf.Reset()
	if err := h.text.Handle(ctx, r); err != nil {
		return err
	}

	color := colorFor(r)
	if color == "" {
		_, err := h.out.Write(h.buf.Bytes())
		return err
	}
	line := strings.TrimRight(string(h.buf.Bytes()), "\n")
	_, err := fmt.Fprintf(h.out, "%s%s%s\n", color, line, colorReset)
	return err
}

// WithAttrs implements slog.Handler
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ColorHandler{mu: h.mu, out: h.out, opts: h.opts, text: h.text.WithAttrs(attrs), buf: h.buf}
}

// WithGroup implements slog.Handler
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	return &ColorHandler{mu: h.mu, out: h.out, opts: h.opts, text: h.text.WithGroup(name), buf: h.buf}
}

func colorFor(r slog.Record) string {
	switch {
	case r.Level >= slog.LevelError:
		return colorRed
	case r.Level >= slog.LevelWarn:
		return colorYellow
	}
	msg := strings.ToLower(r.Message)
	for _, word := range []string{"registered", "renewed"} {
		if strings.Contains(msg, word) {
			return colorGreen
		}
	}
	return ""
}

// lineBuffer collects one formatted record; guarded by ColorHandler.mu.
type lineBuffer struct {
	b []byte
}

func (l *lineBuffer) Write(p []byte) (int, error) {
	l.b = append(l.b, p...)
	return len(p), nil
}

func (l *lineBuffer) Reset()        { l.b = l.b[:0] }
func (l *lineBuffer) Bytes() []byte { return l.b }
