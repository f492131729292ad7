// Package crdtlog is the structured-logging wrapper shared by the arena,
// tracker, and rope packages, grounded on the log-capture pipeline's
// pervasive use of *logrus.Logger with map[string]interface{} fields.
package crdtlog

import (
	"os"

	"github.com/sirupsen/logrus"

	"ssw-text-crdt/internal/apperrors"
)

// Logger is a component-scoped structured logger. A nil *Logger is safe to
// use: Debugf, Infof and WithFields do nothing, and FatalError logs through
// logrus's standard logger, so constructors across this module can accept
// an optional logger the way the teacher's managers do.
type Logger struct {
	component string
	base      *logrus.Logger
}

// New wraps base, scoping every entry to component. If base is nil, a
// logger is created at Warn level so the core stays quiet unless something
// actually goes wrong.
func New(component string, base *logrus.Logger) *Logger {
	if base == nil {
		base = logrus.New()
		base.SetLevel(logrus.WarnLevel)
		base.SetOutput(os.Stderr)
	}
	return &Logger{component: component, base: base}
}

func (l *Logger) entry() *logrus.Entry {
	if l == nil || l.base == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return l.base.WithField("component", l.component)
}

// Debugf logs at debug level with formatted args.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.entry().Debugf(format, args...)
}

// Infof logs at info level with formatted args.
func (l *Logger) Infof(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.entry().Infof(format, args...)
}

// WithFields logs a message with structured fields at info level.
func (l *Logger) WithFields(fields map[string]interface{}, msg string) {
	if l == nil {
		return
	}
	l.entry().WithFields(fields).Info(msg)
}

// FatalError logs a CoreError at Error level with its structured fields
// and returns; it does not exit the process. Fatal call sites panic with
// the error themselves after calling it, so tests can recover and assert.
func (l *Logger) FatalError(err *apperrors.CoreError) {
	l.entry().WithFields(err.ToFields()).Error(err.Error())
}
