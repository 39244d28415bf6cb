// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	JSON       bool // console output as JSON lines instead of the pretty writer
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// NewLoggerWithConfig builds the process logger. Console output goes to
// stderr; the optional file is rotated by lumberjack.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	return zerolog.New(buildWriter(cfg, os.Stderr)).
		With().
		Timestamp().
		Str("service", "signalbot").
		Logger()
}

func buildWriter(cfg LogConfig, console io.Writer) io.Writer {
	var writers []io.Writer
	if cfg.Console {
		if cfg.JSON {
			writers = append(writers, console)
		} else {
			writers = append(writers, newConsoleWriter(console))
		}
	}
	if fw := newFileWriter(cfg); fw != nil {
		writers = append(writers, fw)
	}

	switch len(writers) {
	case 0:
		return io.Discard
	case 1:
		return writers[0]
	default:
		return zerolog.MultiLevelWriter(writers...)
	}
}

// newFileWriter returns nil when file logging is off or the directory
// cannot be created; the logger then keeps its console output only.
func newFileWriter(cfg LogConfig) io.Writer {
	if !cfg.File || cfg.FilePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}
}

var levelTags = map[string]string{
	"debug": "\033[36mDBG\033[0m",
	"info":  "\033[32mINF\033[0m",
	"warn":  "\033[33mWRN\033[0m",
	"error": "\033[31mERR\033[0m",
}

func newConsoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		FormatLevel: func(i interface{}) string {
			ll, _ := i.(string)
			if tag, ok := levelTags[ll]; ok {
				return tag
			}
			return strings.ToUpper(ll)
		},
	}
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	if strings.EqualFold(level, "warning") {
		return zerolog.WarnLevel
	}
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

type ctxKey struct{}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext retrieves the logger from context, or a no-op logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithRequestID adds a request id to the logger context.
func WithRequestID(logger zerolog.Logger, requestID string) zerolog.Logger {
	return logger.With().Str("request_id", requestID).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogSignal logs a generated signal.
func LogSignal(logger zerolog.Logger, pair, action string, confidence, price float64) {
	logger.Debug().
		Str("event", "signal").
		Str("pair", pair).
		Str("action", action).
		Float64("confidence", confidence).
		Float64("price", price).
		Msg("Signal generated")
}

// LogTrade logs a trade event.
func LogTrade(logger zerolog.Logger, id uint64, pair, action string, confidence, price float64) {
	logger.Info().
		Str("event", "trade").
		Uint64("trade_id", id).
		Str("pair", pair).
		Str("action", action).
		Float64("confidence", confidence).
		Float64("price", price).
		Msg("Trade executed")
}

// LogStateChange logs a control-surface mutation of the bot state.
func LogStateChange(logger zerolog.Logger, field string, from, to interface{}) {
	logger.Info().
		Str("event", "state_change").
		Str("field", field).
		Interface("from", from).
		Interface("to", to).
		Msg("Bot state updated")
}

// LogAPICall logs an outbound call to a collaborator.
func LogAPICall(logger zerolog.Logger, method, endpoint string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "api_call").
		Str("method", method).
		Str("endpoint", endpoint).
		Dur("duration", duration)

	if err != nil {
		event.Str("error", Redact(err.Error())).Msg("API call failed")
	} else {
		event.Msg("API call completed")
	}
}
