package infrastructure

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lumenly/eventcore/pkg/domain"
)

// ZapLogger implements domain.Logger over a zap.SugaredLogger, so the
// rest of the core depends only on the interface and never on zap
// directly.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewLogger builds a ZapLogger at the given level ("debug", "info",
// "warn", "error", "fatal") and format ("json" or "console").
func NewLogger(level, format string) (*ZapLogger, error) {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &ZapLogger{sugar: logger.Sugar()}, nil
}

func (l *ZapLogger) Debug(msg string, keysAndValues ...interface{}) { l.sugar.Debugw(msg, keysAndValues...) }
func (l *ZapLogger) Info(msg string, keysAndValues ...interface{})  { l.sugar.Infow(msg, keysAndValues...) }
func (l *ZapLogger) Warn(msg string, keysAndValues ...interface{})  { l.sugar.Warnw(msg, keysAndValues...) }
func (l *ZapLogger) Error(msg string, keysAndValues ...interface{}) { l.sugar.Errorw(msg, keysAndValues...) }
func (l *ZapLogger) Fatal(msg string, keysAndValues ...interface{}) { l.sugar.Fatalw(msg, keysAndValues...) }

func (l *ZapLogger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *ZapLogger) Infof(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *ZapLogger) Warnf(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *ZapLogger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }
func (l *ZapLogger) Fatalf(format string, args ...interface{}) { l.sugar.Fatalf(format, args...) }

// Sync flushes any buffered log entries, best-effort.
func (l *ZapLogger) Sync() error { return l.sugar.Sync() }

var _ domain.Logger = (*ZapLogger)(nil)
