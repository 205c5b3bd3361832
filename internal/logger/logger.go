// Package logger holds the process-wide structured logger.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// L is the global logger instance. It discards all output until Init is called.
var L = zap.NewNop()

// AllocLogEnv enables per-allocation debug logging when set to any non-empty value.
const AllocLogEnv = "EXECALLOC_LOG_ALLOC"

// Options configures the logger initialization.
type Options struct {
	Enabled     bool          // If false, all logging is discarded
	Level       zapcore.Level // Minimum log level. Default: InfoLevel
	Development bool          // Human-readable console output instead of JSON
	OutputPaths []string      // Default: stderr
}

// Init configures logging. Call from main() before any log calls.
// If opts.Enabled is false, all log output is discarded.
func Init(opts Options) error {
	if !opts.Enabled {
		L = zap.NewNop()
		return nil
	}

	cfg := zap.NewProductionConfig()
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(opts.Level)
	if len(opts.OutputPaths) > 0 {
		cfg.OutputPaths = opts.OutputPaths
	}

	l, err := cfg.Build()
	if err != nil {
		return err
	}
	L = l
	return nil
}

// Set replaces the global logger. Used by tests to capture output.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	L = l
}

// AllocLoggingFromEnv reports whether the allocation debug toggle is set.
func AllocLoggingFromEnv() bool {
	return os.Getenv(AllocLogEnv) != ""
}
