package logging

import (
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Init builds the process logger and installs it as zap's global logger so
// packages can log through zap.L().
func Init(level string, dev bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// StdLog adapts the global logger for libraries that want a *log.Logger.
func StdLog(name string) *log.Logger {
	return zap.NewStdLog(zap.L().Named(name))
}

// LogRequest logs an outbound API request being made.
func LogRequest(component, method, url string) {
	zap.L().Debug("outbound request",
		zap.String("component", component),
		zap.String("method", method),
		zap.String("url", url),
	)
}

// LogResponse logs an outbound API response received.
func LogResponse(component string, statusCode int, duration time.Duration) {
	zap.L().Info("outbound response",
		zap.String("component", component),
		zap.Int("status", statusCode),
		zap.Int64("duration_ms", duration.Milliseconds()),
	)
}

// LogError logs an error from an operation that the caller recovers from.
func LogError(component, operation string, err error) {
	zap.L().Warn("operation failed",
		zap.String("component", component),
		zap.String("operation", operation),
		zap.Error(err),
	)
}
