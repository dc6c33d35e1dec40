// Package oarklog adapts github.com/oarkflow/log to the log.Logger interface.
package oarklog

import (
	log "github.com/fclairamb/go-log"
	olog "github.com/oarkflow/log"
)

type logger struct {
	base    olog.Logger
	keyvals []interface{}
}

// Default returns a console logger at info level.
func Default() log.Logger {
	return &logger{
		base: olog.Logger{
			Level:  olog.InfoLevel,
			Writer: &olog.ConsoleWriter{ColorOutput: true},
		},
	}
}

func (l *logger) emit(e *olog.Entry, event string, keyvals []interface{}) {
	e.KeysAndValues(l.keyvals...).KeysAndValues(keyvals...).Msg(event)
}

func (l *logger) Debug(event string, keyvals ...interface{}) {
	l.emit(l.base.Debug(), event, keyvals)
}

func (l *logger) Info(event string, keyvals ...interface{}) {
	l.emit(l.base.Info(), event, keyvals)
}

func (l *logger) Warn(event string, keyvals ...interface{}) {
	l.emit(l.base.Warn(), event, keyvals)
}

func (l *logger) Error(event string, keyvals ...interface{}) {
	l.emit(l.base.Error(), event, keyvals)
}

func (l *logger) Panic(event string, keyvals ...interface{}) {
	l.emit(l.base.Panic(), event, keyvals)
}

func (l *logger) With(keyvals ...interface{}) log.Logger {
	merged := make([]interface{}, 0, len(l.keyvals)+len(keyvals))
	merged = append(merged, l.keyvals...)
	merged = append(merged, keyvals...)
	return &logger{base: l.base, keyvals: merged}
}
