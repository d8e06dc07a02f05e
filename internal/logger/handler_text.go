package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// timeLayout keeps log lines narrow; sweeps are short-lived so the date
// adds nothing an operator needs.
const timeLayout = "15:04:05.000"

// ColorTextHandler implements slog.Handler with colored text output.
// Store paths and command errors routinely contain spaces, so string
// values are quoted whenever they would be ambiguous in key=value form.
type ColorTextHandler struct {
	opts     *slog.HandlerOptions
	w        io.Writer
	mu       *sync.Mutex
	attrs    []slog.Attr
	prefix   string
	useColor bool
}

// NewColorTextHandler creates a new colored text handler
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, useColor bool) *ColorTextHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &ColorTextHandler{
		opts:     opts,
		w:        w,
		mu:       &sync.Mutex{},
		useColor: useColor,
	}
}

// Enabled reports whether the handler handles records at the given level
func (h *ColorTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle formats and writes the log record
func (h *ColorTextHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 1024)

	if h.useColor {
		buf = append(buf, colorGray...)
	}
	buf = append(buf, r.Time.Format(timeLayout)...)
	if h.useColor {
		buf = append(buf, colorReset...)
	}
	buf = append(buf, ' ')

	buf = h.formatLevel(buf, r.Level)
	buf = append(buf, ' ')

	buf = append(buf, r.Message...)

	for _, attr := range h.attrs {
		buf = h.appendAttr(buf, attr)
	}

	r.Attrs(func(attr slog.Attr) bool {
		buf = h.appendAttr(buf, attr)
		return true
	})

	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *ColorTextHandler) formatLevel(buf []byte, level slog.Level) []byte {
	var levelStr, color string

	switch {
	case level >= slog.LevelError:
		levelStr = "ERRO"
		color = colorRed
	case level >= slog.LevelWarn:
		levelStr = "WARN"
		color = colorYellow
	case level >= slog.LevelInfo:
		levelStr = "INFO"
		color = colorGreen
	default:
		levelStr = "DEBU"
		color = colorGray
	}

	if h.useColor {
		buf = append(buf, color...)
	}
	buf = append(buf, levelStr...)
	if h.useColor {
		buf = append(buf, colorReset...)
	}

	return buf
}

func (h *ColorTextHandler) appendAttr(buf []byte, attr slog.Attr) []byte {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return buf
	}

	// Inline groups so nested attrs stay greppable as dotted keys.
	if attr.Value.Kind() == slog.KindGroup {
		sub := *h
		sub.prefix = h.prefix + attr.Key + "."
		for _, a := range attr.Value.Group() {
			buf = sub.appendAttr(buf, a)
		}
		return buf
	}

	buf = append(buf, ' ')

	if h.useColor {
		buf = append(buf, colorCyan...)
	}
	buf = append(buf, h.prefix...)
	buf = append(buf, attr.Key...)
	if h.useColor {
		buf = append(buf, colorReset...)
	}
	buf = append(buf, '=')
	buf = h.formatValue(buf, attr.Value)

	return buf
}

func (h *ColorTextHandler) formatValue(buf []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		buf = appendQuoted(buf, v.String())
	case slog.KindInt64:
		buf = strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		buf = strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		buf = fmt.Appendf(buf, "%g", v.Float64())
	case slog.KindBool:
		buf = strconv.AppendBool(buf, v.Bool())
	case slog.KindDuration:
		buf = append(buf, v.Duration().String()...)
	case slog.KindTime:
		buf = append(buf, v.Time().Format(time.RFC3339)...)
	default:
		buf = appendQuoted(buf, fmt.Sprintf("%v", v.Any()))
	}
	return buf
}

// appendQuoted writes s, quoting it when it contains characters that
// would break key=value parsing.
func appendQuoted(buf []byte, s string) []byte {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}

// WithAttrs returns a new handler with additional attributes
func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.attrs = make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(h2.attrs, h.attrs)
	copy(h2.attrs[len(h.attrs):], attrs)
	return &h2
}

// WithGroup returns a new handler with the given group name
func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}
