// Package zaplog adapts go.uber.org/zap to the log.Logger interface shared
// across the gateway.
package zaplog

import (
	log "github.com/fclairamb/go-log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type logger struct {
	sugar *zap.SugaredLogger
}

// New builds a zap-backed logger for the given level ("debug", "info",
// "warn", "error") and format ("text" or "json").
func New(level, format string) (log.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stdout"}
	if format == "text" {
		cfg.Encoding = "console"
	}

	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &logger{sugar: zl.Sugar()}, nil
}

// Default returns an info-level production logger.
func Default() log.Logger {
	zl, err := zap.NewProduction()
	if err != nil {
		zl = zap.NewNop()
	}
	return &logger{sugar: zl.Sugar()}
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() log.Logger {
	return &logger{sugar: zap.NewNop().Sugar()}
}

func (l *logger) Debug(event string, keyvals ...interface{}) {
	l.sugar.Debugw(event, keyvals...)
}

func (l *logger) Info(event string, keyvals ...interface{}) {
	l.sugar.Infow(event, keyvals...)
}

func (l *logger) Warn(event string, keyvals ...interface{}) {
	l.sugar.Warnw(event, keyvals...)
}

func (l *logger) Error(event string, keyvals ...interface{}) {
	l.sugar.Errorw(event, keyvals...)
}

func (l *logger) Panic(event string, keyvals ...interface{}) {
	l.sugar.Panicw(event, keyvals...)
}

func (l *logger) With(keyvals ...interface{}) log.Logger {
	return &logger{sugar: l.sugar.With(keyvals...)}
}
