package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

type DefaultLogger struct {
	logger *slog.Logger
}

func NewDefaultLogger(level slog.Level) *DefaultLogger {
	return NewLogger(os.Stderr, level)
}

func NewLogger(w io.Writer, level slog.Level) *DefaultLogger {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	return &DefaultLogger{logger: logger}
}

// Nop returns a logger that discards everything.
func Nop() *DefaultLogger {
	return &DefaultLogger{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

const prefix = "[tdb] "

func (d *DefaultLogger) Debug(msg string, args ...any) {
	d.logger.Debug(prefix+msg, args...)
}

func (d *DefaultLogger) Info(msg string, args ...any) {
	d.logger.Info(prefix+msg, args...)
}

func (d *DefaultLogger) Warn(msg string, args ...any) {
	d.logger.Warn(prefix+msg, args...)
}

func (d *DefaultLogger) Error(msg string, args ...any) {
	d.logger.Error(prefix+msg, args...)
}

func (d *DefaultLogger) With(args ...any) Logger {
	return &DefaultLogger{logger: d.logger.With(args...)}
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// EngineLogger adapts a Logger to the printf-style interfaces the storage
// engines expect (badger.Logger and pebble's Logger).
type EngineLogger struct {
	log    Logger
	engine string
}

func NewEngineLogger(l Logger, engine string) *EngineLogger {
	return &EngineLogger{log: OrNop(l), engine: engine}
}

func (e *EngineLogger) msg(format string, args ...any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}

func (e *EngineLogger) Errorf(format string, args ...any) {
	e.log.Error(e.msg(format, args...), "engine", e.engine)
}

func (e *EngineLogger) Warningf(format string, args ...any) {
	e.log.Warn(e.msg(format, args...), "engine", e.engine)
}

func (e *EngineLogger) Infof(format string, args ...any) {
	e.log.Debug(e.msg(format, args...), "engine", e.engine)
}

func (e *EngineLogger) Debugf(format string, args ...any) {
	e.log.Debug(e.msg(format, args...), "engine", e.engine)
}

// Fatalf logs and panics. Pebble calls it on unrecoverable internal errors.
func (e *EngineLogger) Fatalf(format string, args ...any) {
	m := e.msg(format, args...)
	e.log.Error(m, "engine", e.engine)
	panic(m)
}
