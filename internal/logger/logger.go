// Package logger holds the process-wide diagnostic logger.
//
// Until Init is called the logger discards everything, so library packages
// can log freely without writing over the terminal UI or test output.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// L is the global sugared logger.
	L *zap.SugaredLogger
	// Z is the global structured logger, for hot paths.
	Z *zap.Logger
	// closer releases the rotating file writer, if any.
	closer io.Closer
)

func init() {
	Z = zap.NewNop()
	L = Z.Sugar()
}

// Config describes log level and optional file output.
type Config struct {
	Level      string // debug, info, warn, error
	File       string // log file path; empty logs to stderr only
	MaxSize    int    // megabytes per file before rotation
	MaxBackups int    // rotated files to keep
	MaxAge     int    // days to keep rotated files
	Quiet      bool   // suppress stderr, for use under a full-screen UI
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unsupported log level: %s", level)
}

// Init configures the global logger.
func Init(cfg Config) error {
	zapLevel, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		MessageKey:     "M",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	var writers []io.Writer
	if !cfg.Quiet {
		writers = append(writers, os.Stderr)
	}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		maxSize := cfg.MaxSize
		if maxSize <= 0 {
			maxSize = 64
		}
		maxBackups := cfg.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 3
		}
		maxAge := cfg.MaxAge
		if maxAge <= 0 {
			maxAge = 7
		}

		fileWriter := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			MaxAge:     maxAge,
			Compress:   true,
		}
		closer = fileWriter
		writers = append(writers, fileWriter)
	}
	if len(writers) == 0 {
		Z = zap.NewNop()
		L = Z.Sugar()
		return nil
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(io.MultiWriter(writers...)),
		zapLevel,
	)

	Z = zap.New(core, zap.AddCallerSkip(1))
	L = Z.Sugar()
	return nil
}

// Sync flushes buffered output and closes the log file. Call before exit.
func Sync() {
	if Z != nil {
		_ = Z.Sync()
	}
	if closer != nil {
		_ = closer.Close()
		closer = nil
	}
}

// Debugf logs at debug level.
func Debugf(template string, args ...interface{}) { L.Debugf(template, args...) }

// Infof logs at info level.
func Infof(template string, args ...interface{}) { L.Infof(template, args...) }

// Warnf logs at warn level.
func Warnf(template string, args ...interface{}) { L.Warnf(template, args...) }

// Errorf logs at error level.
func Errorf(template string, args ...interface{}) { L.Errorf(template, args...) }
