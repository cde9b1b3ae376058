// Package logging provides the process-wide structured logger. Components
// log through the package-level helpers; the top-level assembly owns
// initialization and flushing.
package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu      sync.RWMutex
	sugared = zap.NewNop().Sugar()
	base    = zap.NewNop()
)

// InitFromEnv configures the logger from the environment.
// ROUTER_LOG_LEVEL selects the level (debug, info, warn, error; default info)
// and ROUTER_LOG_FORMAT selects console or json output (default json).
func InitFromEnv() (*zap.Logger, error) {
	level := parseLevel(os.Getenv("ROUTER_LOG_LEVEL"))

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if strings.EqualFold(os.Getenv("ROUTER_LOG_FORMAT"), "console") {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	mu.Lock()
	base = logger
	sugared = logger.Sugar()
	mu.Unlock()
	return logger, nil
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger returns the current structured logger for callers that need typed
// fields rather than the printf helpers.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

func Debugf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	sugared.Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	sugared.Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	sugared.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	sugared.Errorf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	sugared.Fatalf(format, args...)
}

// LogEvent emits a named event with structured fields at info level.
func LogEvent(event string, fields map[string]interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	zapFields := make([]zap.Field, 0, len(fields)+1)
	zapFields = append(zapFields, zap.String("event", event))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	base.Info("event", zapFields...)
}
