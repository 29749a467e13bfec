// Package logging contains the zap-backed logger used by the stereo feature pipeline. Entries are
// zapcore entries fanned out to appenders; the extractor hands a sublogger to each eye worker.
package logging

import (
	"io"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewWriterLogger returns a logger that writes level+ lines to w in UTC.
func NewWriterLogger(name string, w io.Writer, level Level) Logger {
	return &impl{name: name, level: NewAtomicLevelAt(level), inUTC: true, appenders: []Appender{NewWriterAppender(w)}}
}

// NewTestLogger returns a Debug+ logger that writes to the test object in local time.
func NewTestLogger(tb testing.TB) Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is like NewTestLogger but also keeps every entry in an observer, for tests
// that assert on what was logged.
func NewObservedTestLogger(tb testing.TB) (Logger, *observer.ObservedLogs) {
	observerCore, observedLogs := observer.New(zap.LevelEnablerFunc(zapcore.DebugLevel.Enabled))
	logger := &impl{
		level:     NewAtomicLevelAt(DEBUG),
		appenders: []Appender{NewTestAppender(tb), observerCore},
	}
	return logger, observedLogs
}
