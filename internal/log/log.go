// Package log provides centralized logging functionality using zap logger.
package log

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	baseLogger *zap.Logger
	sugar      *zap.SugaredLogger
	// helpers backs the package-level functions and skips their frame.
	helpers *zap.SugaredLogger
)

// Init initializes the package-level logger. When logFile is set, entries are
// also written to a size-rotated file.
func Init(debug bool, logFile string) error {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	zapLogger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %v", err)
	}

	if logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			cfg.Level,
		)
		zapLogger = zapLogger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	setLogger(zapLogger)
	return nil
}

func setLogger(l *zap.Logger) {
	baseLogger = l
	sugar = l.Sugar()
	helpers = l.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

func ensureLogger() {
	if baseLogger == nil {
		// Fallback logger if not initialized
		l, _ := zap.NewProduction()
		setLogger(l)
	}
}

// GetSugaredLogger returns the logger handed to components. Its caller is the
// component's own call site.
func GetSugaredLogger() *zap.SugaredLogger {
	ensureLogger()
	return sugar
}

// Sync flushes any buffered log entries
func Sync() {
	if baseLogger != nil {
		baseLogger.Sync()
	}
}

func Info(args ...interface{}) {
	ensureLogger()
	helpers.Info(args...)
}

func Errorf(template string, args ...interface{}) {
	ensureLogger()
	helpers.Errorf(template, args...)
}
