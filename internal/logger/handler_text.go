package logger

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// ANSI escapes for level and key coloring.
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
)

// textHandler is a slog.Handler producing one human-oriented line per
// record:
//
//	[2006-01-02 15:04:05] [LEVEL] message key=value ...
//
// with ANSI colors when the sink is a terminal. Fields bound via WithAttrs
// are rendered once and replayed on every record.
type textHandler struct {
	w     io.Writer
	wmu   *sync.Mutex // shared by derived handlers so lines never interleave
	level slog.Leveler
	color bool

	prefix string // open group path, "a.b."
	fields []byte // preformatted WithAttrs output
}

func newTextHandler(w io.Writer, opts *slog.HandlerOptions, color bool) *textHandler {
	h := &textHandler{w: w, wmu: new(sync.Mutex), color: color}
	if opts != nil {
		h.level = opts.Level
	}
	return h
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.level != nil {
		min = h.level.Level()
	}
	return level >= min
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)
	buf = append(buf, '[')
	buf = r.Time.AppendFormat(buf, "2006-01-02 15:04:05")
	buf = append(buf, "] ["...)
	buf = h.appendLevel(buf, r.Level)
	buf = append(buf, "] "...)
	buf = append(buf, r.Message...)
	buf = append(buf, h.fields...)
	r.Attrs(func(a slog.Attr) bool {
		buf = h.appendAttr(buf, a)
		return true
	})
	buf = append(buf, '\n')

	h.wmu.Lock()
	_, err := h.w.Write(buf)
	h.wmu.Unlock()
	return err
}

func (h *textHandler) appendLevel(buf []byte, level slog.Level) []byte {
	name, color := "ERROR", ansiRed
	switch {
	case level < slog.LevelInfo:
		name, color = "DEBUG", ansiGray
	case level < slog.LevelWarn:
		name, color = "INFO", ansiGreen
	case level < slog.LevelError:
		name, color = "WARN", ansiYellow
	}

	if h.color {
		buf = append(buf, color...)
		buf = append(buf, name...)
		return append(buf, ansiReset...)
	}
	return append(buf, name...)
}

// appendAttr renders " key=value", qualifying the key with the open groups.
func (h *textHandler) appendAttr(buf []byte, a slog.Attr) []byte {
	if a.Equal(slog.Attr{}) {
		return buf
	}

	buf = append(buf, ' ')
	if h.color {
		buf = append(buf, ansiCyan...)
	}
	buf = append(buf, h.prefix...)
	buf = append(buf, a.Key...)
	if h.color {
		buf = append(buf, ansiReset...)
	}
	buf = append(buf, '=')
	return appendValue(buf, a.Value.Resolve())
}

func appendValue(buf []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'f', 3, 64)
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindDuration:
		return append(buf, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().AppendFormat(buf, time.RFC3339)
	default:
		// KindString, KindAny, KindGroup: Value.String never panics.
		return append(buf, v.String()...)
	}
}

// WithAttrs preformats the bound attrs under the current group prefix.
func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := h.clone()
	for _, a := range attrs {
		h2.fields = h2.appendAttr(h2.fields, a)
	}
	return h2
}

// WithGroup qualifies keys of subsequently added attrs with name.
func (h *textHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := h.clone()
	h2.prefix = h.prefix + name + "."
	return h2
}

func (h *textHandler) clone() *textHandler {
	return &textHandler{
		w:      h.w,
		wmu:    h.wmu,
		level:  h.level,
		color:  h.color,
		prefix: h.prefix,
		fields: append([]byte(nil), h.fields...),
	}
}
