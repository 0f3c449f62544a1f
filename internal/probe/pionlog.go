// File: internal/probe/pionlog.go (complete file)

package probe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

const levelTrace = slog.LevelDebug - 4

// pionLoggerFactory routes engine logs through slog so -log-level applies to them too.
// The engine is chatty: its debug output lands at trace and its info at debug,
// so the default info level only shows engine warnings and errors.
type pionLoggerFactory struct {
	log *slog.Logger
}

func newPionLoggerFactory(log *slog.Logger) logging.LoggerFactory {
	if log == nil {
		log = slog.Default()
	}
	return pionLoggerFactory{log: log}
}

func (f pionLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{log: f.log.With("component", "pion", "scope", scope)}
}

type pionLogger struct {
	log *slog.Logger
}

func (l *pionLogger) emit(level slog.Level, msg string) {
	l.log.Log(context.Background(), level, msg)
}

func (l *pionLogger) Trace(msg string) { l.emit(levelTrace, msg) }
func (l *pionLogger) Tracef(format string, args ...interface{}) {
	l.emit(levelTrace, fmt.Sprintf(format, args...))
}
func (l *pionLogger) Debug(msg string) { l.emit(levelTrace, msg) }
func (l *pionLogger) Debugf(format string, args ...interface{}) {
	l.emit(levelTrace, fmt.Sprintf(format, args...))
}
func (l *pionLogger) Info(msg string) { l.emit(slog.LevelDebug, msg) }
func (l *pionLogger) Infof(format string, args ...interface{}) {
	l.emit(slog.LevelDebug, fmt.Sprintf(format, args...))
}
func (l *pionLogger) Warn(msg string) { l.emit(slog.LevelWarn, msg) }
func (l *pionLogger) Warnf(format string, args ...interface{}) {
	l.emit(slog.LevelWarn, fmt.Sprintf(format, args...))
}
func (l *pionLogger) Error(msg string) { l.emit(slog.LevelError, msg) }
func (l *pionLogger) Errorf(format string, args ...interface{}) {
	l.emit(slog.LevelError, fmt.Sprintf(format, args...))
}
