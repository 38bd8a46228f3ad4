// Package logrus adapts a logrus entry to idcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/idcache"
)

var _ idcache.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

// New tags every line with component=idcache.
func New(l *logrus.Logger) LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return LogrusLogger{E: l.WithField("component", "idcache")}
}

func (l LogrusLogger) Debug(msg string, f idcache.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f idcache.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f idcache.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f idcache.Fields) { l.with(f).Error(msg) }

// with routes an "err" field through WithError so formatters and hooks see
// it under logrus.ErrorKey.
func (l LogrusLogger) with(f idcache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	fields := make(logrus.Fields, len(f))
	e := l.E
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			e = e.WithError(err)
			continue
		}
		fields[k] = v
	}
	return e.WithFields(fields)
}
