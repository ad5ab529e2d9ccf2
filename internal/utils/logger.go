package utils

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogLevel is used when no level is configured.
const DefaultLogLevel = "warn"

// NewApplicationLogger constructs a zap logger configured for human-readable console output.
func NewApplicationLogger(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	parsedLevel, levelError := zapcore.ParseLevel(strings.TrimSpace(level))
	if levelError != nil || strings.TrimSpace(level) == "" {
		parsedLevel = zapcore.WarnLevel
	}
	config.Level = zap.NewAtomicLevelAt(parsedLevel)
	config.Encoding = "console"
	config.DisableCaller = true
	config.DisableStacktrace = true
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.EncoderConfig.TimeKey = ""
	config.EncoderConfig.NameKey = ""
	config.EncoderConfig.CallerKey = ""
	config.EncoderConfig.MessageKey = "message"
	config.EncoderConfig.StacktraceKey = ""
	return config.Build()
}
