// Package logger provides the structured logger used across katas.
package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a leveled key/value logger.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	Zap() *zap.Logger
	Sync() error
}

// Config controls how the default logger is built.
type Config struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

var (
	mu            sync.RWMutex
	defaultLogger Logger = Nop()
)

// New builds a zap-backed logger from cfg.
func New(cfg Config) (Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	var zcfg zap.Config
	switch cfg.Format {
	case "", "json":
		zcfg = zap.NewProductionConfig()
	case "console":
		zcfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("log format must be 'json' or 'console', got %q", cfg.Format)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.Sampling = nil

	z, err := zcfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return &zapLogger{sugar: z.Sugar()}, nil
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}

// FromZap adapts an existing zap logger.
func FromZap(z *zap.Logger) Logger {
	return &zapLogger{sugar: z.Sugar()}
}

// Init replaces the package default logger.
func Init(cfg Config) (Logger, error) {
	l, err := New(cfg)
	if err != nil {
		return nil, err
	}
	SetDefault(l)
	return l, nil
}

// SetDefault installs l as the package default.
func SetDefault(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = l
}

// Default returns the package default logger.
func Default() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

func (l *zapLogger) Debug(msg string, kv ...interface{}) { l.sugar.Debugw(msg, kv...) }
func (l *zapLogger) Info(msg string, kv ...interface{})  { l.sugar.Infow(msg, kv...) }
func (l *zapLogger) Warn(msg string, kv ...interface{})  { l.sugar.Warnw(msg, kv...) }
func (l *zapLogger) Error(msg string, kv ...interface{}) { l.sugar.Errorw(msg, kv...) }

func (l *zapLogger) WithField(key string, value interface{}) Logger {
	return &zapLogger{sugar: l.sugar.With(key, value)}
}

func (l *zapLogger) WithFields(fields map[string]interface{}) Logger {
	kv := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return &zapLogger{sugar: l.sugar.With(kv...)}
}

func (l *zapLogger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

func (l *zapLogger) Sync() error {
	err := l.sugar.Sync()
	// stdout/stderr cannot be fsynced on most platforms
	if err != nil && strings.Contains(err.Error(), "invalid argument") {
		return nil
	}
	return err
}

// Package-level helpers on the default logger

func Debug(msg string, kv ...interface{}) { Default().Debug(msg, kv...) }
func Info(msg string, kv ...interface{})  { Default().Info(msg, kv...) }
func Warn(msg string, kv ...interface{})  { Default().Warn(msg, kv...) }
func Error(msg string, kv ...interface{}) { Default().Error(msg, kv...) }

// WithField returns the default logger with an extra field
func WithField(key string, value interface{}) Logger {
	return Default().WithField(key, value)
}

// WithFields returns the default logger with extra fields
func WithFields(fields map[string]interface{}) Logger {
	return Default().WithFields(fields)
}
