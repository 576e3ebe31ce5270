package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/castbridge/internal/infrastructure/config"
)

// ServiceName is attached to every structured entry as "service".
const ServiceName = "castbridge"

// Output formats accepted in logging.format.
const (
	FormatJSON    = "json"
	FormatText    = "text"
	FormatConsole = "console"
)

// Logger is the process logger: a *slog.Logger plus a level that can be
// changed after construction.
//
// It satisfies the Debug/Info/Warn/Error interfaces declared by the
// accessory, bridge, host bus and mqtt packages.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// New builds a Logger for cfg, writing to stdout unless cfg.Output is
// "stderr".
func New(cfg config.LoggingConfig, version string) *Logger {
	var w io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		w = os.Stderr
	}
	return NewWithWriter(cfg, version, w)
}

// NewWithWriter builds a Logger writing to w; cfg.Output is ignored.
//
// json and text entries carry service and version fields. The console
// format is meant for a person at a terminal and omits them.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	lv := new(slog.LevelVar)
	lv.Set(levelOf(cfg.Level))
	opts := &slog.HandlerOptions{Level: lv}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case FormatConsole:
		h = newConsoleHandler(w, lv)
	case FormatText:
		h = slog.NewTextHandler(w, opts).WithAttrs(serviceAttrs(version))
	default:
		h = slog.NewJSONHandler(w, opts).WithAttrs(serviceAttrs(version))
	}

	return &Logger{Logger: slog.New(h), level: lv}
}

func serviceAttrs(version string) []slog.Attr {
	return []slog.Attr{
		slog.String("service", ServiceName),
		slog.String("version", version),
	}
}

// levelOf maps debug, info, warn(ing) and error; anything else is info.
func levelOf(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// SetLevel changes the minimum level of l and every logger derived from it.
func (l *Logger) SetLevel(level string) {
	if l.level != nil {
		l.level.Set(levelOf(level))
	}
}

// With returns a child logger with extra fields.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level}
}

// Component returns a child logger tagged component=name.
//
//	castLog := log.Component("cast")
//	castLog.Debug("session open") // ... component=cast
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Default is the logger used before the configuration is loaded: console
// format on stderr at info level, so one-shot command output on stdout
// stays clean.
func Default() *Logger {
	return NewWithWriter(config.LoggingConfig{Level: "info", Format: FormatConsole}, "dev", os.Stderr)
}
