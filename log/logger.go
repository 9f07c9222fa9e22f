// Package logging builds the zap loggers used across the SDK and carries them
// through contexts.
package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerContextKey struct{}

// Options controls DefaultLogger.
type Options struct {
	// Dev switches to a console encoder at debug level.
	Dev bool
	// FilePath, if set, tees every entry into the given file.
	FilePath string
}

// DefaultLogger returns a JSON logger at info level, or a console logger at
// debug level when opts.Dev is set. The returned cleanup flushes the logger
// and closes the log file, if any.
func DefaultLogger(opts Options, options ...zap.Option) (*zap.Logger, func(), error) {
	var encoder zapcore.Encoder
	var logLevel zapcore.Level

	if opts.Dev {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
		logLevel = zap.DebugLevel
	} else {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
		logLevel = zap.InfoLevel
	}

	var file *os.File
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), logLevel),
	}

	if opts.FilePath != "" {
		//nolint:gosec // G301: log directory is operator supplied
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		//nolint:gosec // G302: log file is operator supplied
		f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(f), logLevel))
		file = f
	}

	logger := zap.New(zapcore.NewTee(cores...), options...)
	cleanup := func() {
		_ = logger.Sync()
		if file != nil {
			_ = file.Close()
		}
	}
	return logger, cleanup, nil
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerContextKey{}).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return zap.NewNop()
}
