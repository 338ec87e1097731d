// Package logging builds the zerolog loggers shared by the CLI and the
// long-running service, plus field helpers for tracking events.
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
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "stock-sentinel", "logs", "sentinel.log"),
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     30,
	}
}

var levelLabels = map[string]string{
	zerolog.LevelDebugValue: "\033[36mDBG\033[0m",
	zerolog.LevelInfoValue:  "\033[32mINF\033[0m",
	zerolog.LevelWarnValue:  "\033[33mWRN\033[0m",
	zerolog.LevelErrorValue: "\033[31mERR\033[0m",
}

// New returns a logger for the sinks enabled in cfg. The console sink
// writes human-readable lines to console and the file sink rotates through
// lumberjack. When neither sink is usable, JSON lines go to console.
func New(cfg LogConfig, console io.Writer) zerolog.Logger {
	var sinks []io.Writer
	if cfg.Console {
		sinks = append(sinks, consoleSink(console))
	}
	if cfg.File && cfg.FilePath != "" {
		if sink, err := fileSink(cfg); err == nil {
			sinks = append(sinks, sink)
		}
	}

	out := console
	switch len(sinks) {
	case 0:
	case 1:
		out = sinks[0]
	default:
		out = zerolog.MultiLevelWriter(sinks...)
	}

	return zerolog.New(out).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
}

func consoleSink(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		FormatLevel: func(i interface{}) string {
			level, _ := i.(string)
			if label, ok := levelLabels[level]; ok {
				return label
			}
			return strings.ToUpper(level)
		},
	}
}

func fileSink(cfg LogConfig) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, err
	}
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		LocalTime:  true,
		Compress:   true,
	}, nil
}

// parseLevel maps a level name to a zerolog level. "warning" and "critical"
// are accepted as aliases; empty or unknown names map to info.
func parseLevel(level string) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(level))
	switch name {
	case "":
		return zerolog.InfoLevel
	case "warning":
		return zerolog.WarnLevel
	case "critical":
		return zerolog.ErrorLevel
	}
	parsed, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.InfoLevel
	}
	return parsed
}

// IntoContext attaches logger to ctx so callees pick up its fields.
func IntoContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// FromContext returns the logger attached to ctx, or fallback when there is none.
func FromContext(ctx context.Context, fallback zerolog.Logger) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return fallback
}

// WithEntity adds a tracked entity to the logger context.
func WithEntity(logger zerolog.Logger, kind, id string) zerolog.Logger {
	return logger.With().Str("kind", kind).Str("entity", id).Logger()
}

// WithJob adds a scheduled job name to the logger context.
func WithJob(logger zerolog.Logger, job string) zerolog.Logger {
	return logger.With().Str("job", job).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogAlert logs an emitted alert.
func LogAlert(logger zerolog.Logger, entity, alertType, verdict string, delivered bool) {
	logger.Info().
		Str("event", "alert").
		Str("entity", entity).
		Str("alert_type", alertType).
		Str("verdict", verdict).
		Bool("delivered", delivered).
		Msg("Alert dispatched")
}

// LogCycle logs the outcome of a tracking cycle.
func LogCycle(logger zerolog.Logger, kind string, checked, alerted, failed int, duration time.Duration) {
	logger.Info().
		Str("event", "cycle").
		Str("kind", kind).
		Int("checked", checked).
		Int("alerted", alerted).
		Int("failed", failed).
		Dur("duration", duration).
		Msg("Tracking cycle completed")
}

// LogAPICall logs one call to an upstream data provider at debug level.
// Callers report failures themselves.
func LogAPICall(logger zerolog.Logger, provider, endpoint string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "api_call").
		Str("provider", provider).
		Str("endpoint", endpoint).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("Provider call failed")
	} else {
		event.Msg("Provider call completed")
	}
}
