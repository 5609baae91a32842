// Package logger is the process-wide structured logging facade, a thin
// layer over log/slog. Components log through package functions; Init
// points them at the configured sink, format, and level. The Ctx variants
// prepend request-scoped identity (trace ids, session id, peer address)
// carried by the context.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config selects the logger's sink and verbosity.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or a file path
}

// levelVar is shared by every handler built here, so SetLevel takes effect
// without rebuilding the handler.
var levelVar = new(slog.LevelVar)

var (
	mu       sync.RWMutex
	sink     io.Writer = os.Stdout
	format             = "text"
	useColor           = true
	slogger  *slog.Logger
)

func init() {
	if f, ok := sink.(*os.File); ok {
		useColor = isTerminal(f.Fd())
	}
	rebuild()
}

// rebuild swaps in a handler for the current sink and format. Callers must
// not hold mu.
func rebuild() {
	mu.Lock()
	defer mu.Unlock()

	opts := &slog.HandlerOptions{Level: levelVar}
	if format == "json" {
		slogger = slog.New(slog.NewJSONHandler(sink, opts))
	} else {
		slogger = slog.New(newTextHandler(sink, opts, useColor))
	}
}

// parseLevel maps a config level name onto slog's scale.
func parseLevel(name string) (slog.Level, bool) {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return 0, false
}

// openSink resolves an output name. Files get color disabled; the standard
// streams enable it when they are terminals.
func openSink(name string) (io.Writer, bool, error) {
	switch strings.ToLower(name) {
	case "stdout":
		return os.Stdout, isTerminal(os.Stdout.Fd()), nil
	case "stderr":
		return os.Stderr, isTerminal(os.Stderr.Fd()), nil
	}

	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, false, fmt.Errorf("opening log file %q: %w", name, err)
	}
	return f, false, nil
}

// Init applies the configuration. Empty fields keep their current values,
// so a partial config adjusts only what it names; unknown level or format
// names are ignored.
func Init(cfg Config) error {
	if cfg.Output != "" {
		w, color, err := openSink(cfg.Output)
		if err != nil {
			return err
		}
		mu.Lock()
		sink = w
		useColor = color
		mu.Unlock()
	}

	if f := strings.ToLower(cfg.Format); f == "text" || f == "json" {
		mu.Lock()
		format = f
		mu.Unlock()
	}

	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}

	rebuild()
	return nil
}

// InitWithWriter points the logger at an arbitrary writer. Test hook.
func InitWithWriter(w io.Writer, level, formatName string, color bool) {
	mu.Lock()
	sink = w
	useColor = color
	if f := strings.ToLower(formatName); f == "text" || f == "json" {
		format = f
	}
	mu.Unlock()

	if level != "" {
		SetLevel(level)
	}
	rebuild()
}

// SetLevel changes the minimum level. Unknown names are ignored.
func SetLevel(name string) {
	if l, ok := parseLevel(name); ok {
		levelVar.Set(l)
	}
}

// SetFormat switches between text and json output. Unknown names are
// ignored.
func SetFormat(name string) {
	name = strings.ToLower(name)
	if name != "text" && name != "json" {
		return
	}

	mu.Lock()
	format = name
	mu.Unlock()
	rebuild()
}

// current returns the active logger.
func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

// Debug logs at debug level with alternating key/value fields.
func Debug(msg string, args ...any) {
	if levelVar.Level() > slog.LevelDebug {
		return
	}
	current().Debug(msg, args...)
}

// Info logs at info level with alternating key/value fields.
func Info(msg string, args ...any) {
	if levelVar.Level() > slog.LevelInfo {
		return
	}
	current().Info(msg, args...)
}

// Warn logs at warn level with alternating key/value fields.
func Warn(msg string, args ...any) {
	if levelVar.Level() > slog.LevelWarn {
		return
	}
	current().Warn(msg, args...)
}

// Error logs at error level with alternating key/value fields.
func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

// DebugCtx logs at debug level, prepending the identity fields carried by
// ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	if levelVar.Level() > slog.LevelDebug {
		return
	}
	current().Debug(msg, FromContext(ctx).prepend(args)...)
}

// InfoCtx logs at info level with context identity fields.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	if levelVar.Level() > slog.LevelInfo {
		return
	}
	current().Info(msg, FromContext(ctx).prepend(args)...)
}

// WarnCtx logs at warn level with context identity fields.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	if levelVar.Level() > slog.LevelWarn {
		return
	}
	current().Warn(msg, FromContext(ctx).prepend(args)...)
}

// ErrorCtx logs at error level with context identity fields.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	current().Error(msg, FromContext(ctx).prepend(args)...)
}
