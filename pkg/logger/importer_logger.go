// Package logger provides the structured logging facade for the service.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Level represents log severity
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// ParseLevel parses a string level to Level
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug
	case "info", "INFO":
		return LevelInfo
	case "warn", "WARN", "warning", "WARNING":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	case "fatal", "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Config for logger
type Config struct {
	Level   Level
	Output  io.Writer
	Service string
}

// Logger wraps a zerolog.Logger with printf-style helpers.
type Logger struct {
	zl zerolog.Logger
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Init initializes the default logger
func Init(cfg Config) {
	once.Do(func() {
		if cfg.Output == nil {
			cfg.Output = os.Stdout
		}
		if cfg.Service == "" {
			cfg.Service = "drive-import"
		}
		zl := zerolog.New(cfg.Output).
			Level(cfg.Level.zerolog()).
			With().
			Timestamp().
			Str("service", cfg.Service).
			Logger()
		defaultLogger = &Logger{zl: zl}
	})
}

// Default returns the default logger
func Default() *Logger {
	if defaultLogger == nil {
		Init(Config{Level: LevelInfo})
	}
	return defaultLogger
}

// WithField returns a logger with an extra field attached.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// WithError returns a logger with the error attached.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zl: l.zl.With().AnErr("error", err).Logger()}
}

// WithAccount returns a logger with the tenant account attached.
func (l *Logger) WithAccount(account string) *Logger {
	return &Logger{zl: l.zl.With().Str("account", account).Logger()}
}

func (l *Logger) Debug(format string, args ...any) {
	l.zl.Debug().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...any) {
	l.zl.Info().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...any) {
	l.zl.Warn().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	l.zl.Error().Msg(fmt.Sprintf(format, args...))
}

// Fatal logs the message and exits via zerolog's fatal hook.
func (l *Logger) Fatal(format string, args ...any) {
	l.zl.Fatal().Msg(fmt.Sprintf(format, args...))
}

// Package-level helpers on the default logger.

func WithField(key string, value any) *Logger { return Default().WithField(key, value) }
func WithError(err error) *Logger             { return Default().WithError(err) }
func WithAccount(account string) *Logger      { return Default().WithAccount(account) }

func Debug(format string, args ...any) { Default().Debug(format, args...) }
func Info(format string, args ...any)  { Default().Info(format, args...) }
func Warn(format string, args ...any)  { Default().Warn(format, args...) }
func Error(format string, args ...any) { Default().Error(format, args...) }
func Fatal(format string, args ...any) { Default().Fatal(format, args...) }
