// Package logging provides structured logging for gdxgrab
package logging

import (
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration
type Config struct {
	Level       string
	Format      string // "json" or "console"
	OutputPath  string
	Fields      map[string]string
	Development bool
}

// NewLogger creates a zap logger from config. Unknown levels fall back to info.
func NewLogger(config Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	if config.Development {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(config.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.Level = level

	if config.Format == "json" {
		zapConfig.Encoding = "json"
	} else {
		zapConfig.Encoding = "console"
		zapConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	// progress lines go to stderr either way; cron redirects both streams
	zapConfig.Sampling = nil

	if config.OutputPath != "" {
		zapConfig.OutputPaths = []string{config.OutputPath}
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	fields := make([]zap.Field, 0, len(config.Fields))
	for k, v := range config.Fields {
		fields = append(fields, zap.String(k, v))
	}
	return logger.With(fields...), nil
}

// NewDefaultLogger creates a console logger at info level. It never fails.
func NewDefaultLogger() *zap.Logger {
	logger, err := NewLogger(Config{
		Level:  "info",
		Format: "console",
		Fields: map[string]string{"service": "gdxgrab"},
	})
	if err != nil {
		// Fallback to basic logger
		logger, _ = zap.NewProduction()
	}
	return logger
}

// WithField adds a field to the logger context
func WithField(l *zap.Logger, key string, value any) *zap.Logger {
	return l.With(zap.Any(key, value))
}

// WithFields adds multiple fields to the logger context, in key order.
func WithFields(l *zap.Logger, fields map[string]any) *zap.Logger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	zapFields := make([]zap.Field, 0, len(fields))
	for _, k := range keys {
		zapFields = append(zapFields, zap.Any(k, fields[k]))
	}
	return l.With(zapFields...)
}

// LogStep logs one pipeline step at info level, tagged with a "step" field.
func LogStep(l *zap.Logger, step, msg string, fields ...zap.Field) {
	l.Info(msg, append([]zap.Field{zap.String("step", step)}, fields...)...)
}
