// Package logruslog adapts sirupsen/logrus to the log.Logger interface.
package logruslog

import (
	log "github.com/fclairamb/go-log"
	"github.com/sirupsen/logrus"
)

type logger struct {
	entry *logrus.Entry
}

// New builds a logrus-backed logger for the given level and format.
func New(level, format string) (log.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	ll := logrus.New()
	ll.SetLevel(lvl)
	if format == "json" {
		ll.SetFormatter(&logrus.JSONFormatter{})
	}
	return &logger{entry: logrus.NewEntry(ll)}, nil
}

func fields(keyvals []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		f[key] = keyvals[i+1]
	}
	return f
}

func (l *logger) Debug(event string, keyvals ...interface{}) {
	l.entry.WithFields(fields(keyvals)).Debug(event)
}

func (l *logger) Info(event string, keyvals ...interface{}) {
	l.entry.WithFields(fields(keyvals)).Info(event)
}

func (l *logger) Warn(event string, keyvals ...interface{}) {
	l.entry.WithFields(fields(keyvals)).Warn(event)
}

func (l *logger) Error(event string, keyvals ...interface{}) {
	l.entry.WithFields(fields(keyvals)).Error(event)
}

func (l *logger) Panic(event string, keyvals ...interface{}) {
	l.entry.WithFields(fields(keyvals)).Panic(event)
}

func (l *logger) With(keyvals ...interface{}) log.Logger {
	return &logger{entry: l.entry.WithFields(fields(keyvals))}
}
