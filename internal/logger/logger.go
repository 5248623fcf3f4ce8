// Package logger provides structured, level-gated logging for the redactor.
//
// Each entry is written as a single console line carrying the module name,
// the action and the message:
//
//	2006-01-02 15:04:05.000 | INFO  | PIPELINE | stage_done | masked 3 entities
//
// Levels (lowest to highest): debug, info, warn, error.
// Entries below the configured minimum level are silently dropped.
//
// Usage:
//
//	log := logger.New("PIPELINE", cfg.LogLevel)
//	log.Info("run_complete", "intent=reasoning pii=4")
//	log.Errorf("coref_failed", "resolve: %v", err)
//
// Callers must never pass request text or entity values to a logger; log
// counts, types and durations instead.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents a log severity.
type Level int

// Log severity constants, ordered lowest to highest.
const (
	LevelDebug Level = iota // fine-grained diagnostic output
	LevelInfo               // normal operational messages
	LevelWarn               // unexpected but recoverable conditions
	LevelError              // failures requiring attention
)

// Logger writes structured log lines for a single module.
type Logger struct {
	module string
	level  zap.AtomicLevel
	z      *zap.Logger
}

// New creates a Logger for the given module, gated at the given level string.
// Unrecognized level strings default to "info".
func New(module, levelStr string) *Logger {
	return newWithWriter(module, levelStr, os.Stderr)
}

func newWithWriter(module, levelStr string, w io.Writer) *Logger {
	lvl := zap.NewAtomicLevelAt(toZap(parseLevel(levelStr)))
	encCfg := zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		NameKey:          "module",
		MessageKey:       "msg",
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000"),
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " | ",
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), lvl)
	mod := strings.ToUpper(module)
	return &Logger{
		module: mod,
		level:  lvl,
		z:      zap.New(core).Named(mod),
	}
}

// Module returns the upper-cased module name.
func (l *Logger) Module() string { return l.module }

// With returns a child logger for a sub-module, sharing the level.
func (l *Logger) With(sub string) *Logger {
	mod := l.module + "." + strings.ToUpper(sub)
	return &Logger{module: mod, level: l.level, z: l.z.Named(strings.ToUpper(sub))}
}

// SetLevel changes the minimum log level at runtime.
func (l *Logger) SetLevel(levelStr string) {
	l.level.SetLevel(toZap(parseLevel(levelStr)))
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(action, msg string) { l.z.Debug(msg, zap.String("action", action)) }

// Info logs at INFO level.
func (l *Logger) Info(action, msg string) { l.z.Info(msg, zap.String("action", action)) }

// Warn logs at WARN level.
func (l *Logger) Warn(action, msg string) { l.z.Warn(msg, zap.String("action", action)) }

// Error logs at ERROR level.
func (l *Logger) Error(action, msg string) { l.z.Error(msg, zap.String("action", action)) }

// Debugf logs a formatted message at DEBUG level.
func (l *Logger) Debugf(action, format string, args ...any) {
	if !l.level.Enabled(zapcore.DebugLevel) {
		return
	}
	l.Debug(action, fmt.Sprintf(format, args...))
}

// Infof logs a formatted message at INFO level.
func (l *Logger) Infof(action, format string, args ...any) {
	l.Info(action, fmt.Sprintf(format, args...))
}

// Warnf logs a formatted message at WARN level.
func (l *Logger) Warnf(action, format string, args ...any) {
	l.Warn(action, fmt.Sprintf(format, args...))
}

// Errorf logs a formatted message at ERROR level.
func (l *Logger) Errorf(action, format string, args ...any) {
	l.Error(action, fmt.Sprintf(format, args...))
}

// Fatal logs at ERROR level and then calls os.Exit(1).
func (l *Logger) Fatal(action, msg string) {
	l.Error(action, msg)
	_ = l.z.Sync()
	os.Exit(1)
}

// Fatalf logs a formatted message at ERROR level and then calls os.Exit(1).
func (l *Logger) Fatalf(action, format string, args ...any) {
	l.Fatal(action, fmt.Sprintf(format, args...))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error { return l.z.Sync() }

// Nop returns a Logger that discards everything. Used by tests.
func Nop() *Logger {
	return &Logger{module: "NOP", level: zap.NewAtomicLevelAt(zapcore.FatalLevel), z: zap.NewNop()}
}

// parseLevel converts a string to a Level, defaulting to LevelInfo.
func parseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func toZap(l Level) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
