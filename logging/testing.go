package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// testAppender routes entries to a testing.TB so lines show up under the test that logged them.
type testAppender struct {
	tb testing.TB
}

// NewTestAppender returns an appender that writes through tb.Log, in the console line format.
func NewTestAppender(tb testing.TB) Appender {
	return &testAppender{tb}
}

func (tapp *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	tapp.tb.Helper()
	line, err := formatLine(entry, fields)
	tapp.tb.Log(line)
	return err
}

func (tapp *testAppender) Sync() error {
	return nil
}
