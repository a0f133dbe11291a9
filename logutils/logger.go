package logutils

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process logger.
type Options struct {
	// Level is a zap level name; empty means info.
	Level string
	// File enables a JSON file sink with rotation when non-empty.
	File FileOptions
}

// FileOptions are all options supported by the rotation sink.
type FileOptions struct {
	// Base name for log file.
	Filename string
	// Size in megabytes.
	MaxSize int
	// Number of rotated log files.
	MaxBackups int
	// If true rotated log files will be gzipped.
	Compress bool
}

// New builds a console logger on stderr, teed into a rotating file when
// configured.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.Set(opts.Level); err != nil {
			return nil, fmt.Errorf("parsing log level %q: %w", opts.Level, err)
		}
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), level),
	}

	if opts.File.Filename != "" {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			ZapSyncerWithRotation(opts.File),
			level,
		))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

// ZapSyncerWithRotation returns a write syncer backed by lumberjack.
func ZapSyncerWithRotation(opts FileOptions) zapcore.WriteSyncer {
	maxSize := opts.MaxSize
	if maxSize == 0 {
		maxSize = 50
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   opts.Filename,
		MaxSize:    maxSize,
		MaxBackups: opts.MaxBackups,
		Compress:   opts.Compress,
	})
}
