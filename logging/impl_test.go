package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"go.viam.com/test"
)

type tileCount struct {
	Level int
	Count int
	flat  int
}

// assertLogMatches fuzzy matches a log line: the time is checked by length and the line number
// only needs to parse.
func assertLogMatches(t *testing.T, actual *bytes.Buffer, expected string) {
	t.Helper()

	output, err := actual.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)

	actualParts := strings.Split(strings.TrimSuffix(output, "\n"), "\t")
	expectedParts := strings.Split(expected, "\t")
	test.That(t, len(actualParts), test.ShouldEqual, len(expectedParts))
	test.That(t, len(actualParts[0]), test.ShouldEqual, len(expectedParts[0]))
	// Level and logger name.
	test.That(t, actualParts[1], test.ShouldEqual, expectedParts[1])
	test.That(t, actualParts[2], test.ShouldEqual, expectedParts[2])

	actualFilename, actualLine, found := strings.Cut(actualParts[3], ":")
	test.That(t, found, test.ShouldBeTrue)
	expectedFilename, _, found := strings.Cut(expectedParts[3], ":")
	test.That(t, found, test.ShouldBeTrue)
	test.That(t, actualFilename, test.ShouldEqual, expectedFilename)
	_, err = strconv.Atoi(actualLine)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, actualParts[4], test.ShouldEqual, expectedParts[4])
	if len(actualParts) == 5 {
		return
	}

	expectedMap := make(map[string]any)
	test.That(t, json.Unmarshal([]byte(expectedParts[5]), &expectedMap), test.ShouldBeNil)
	actualMap := make(map[string]any)
	test.That(t, json.Unmarshal([]byte(actualParts[5]), &actualMap), test.ShouldBeNil)
	test.That(t, actualMap, test.ShouldResemble, expectedMap)
}

func TestConsoleOutputFormat(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := &impl{
		name:      "extractor",
		level:     NewAtomicLevelAt(DEBUG),
		inUTC:     true,
		appenders: []Appender{NewWriterAppender(notStdout)},
	}

	logger.Info("frame done")
	assertLogMatches(t, notStdout,
		"2023-10-30T09:12:09.459Z\tINFO\textractor\tlogging/impl_test.go:67\tframe done")

	logger.Infof("level %d built", 3)
	assertLogMatches(t, notStdout,
		"2023-10-30T09:12:09.459Z\tINFO\textractor\tlogging/impl_test.go:71\tlevel 3 built")

	logger.Infow("tile", "flat", 41)
	assertLogMatches(t, notStdout,
		"2023-10-30T09:12:09.459Z\tINFO\textractor\tlogging/impl_test.go:75\ttile\t{\"flat\":41}")

	// Only exported struct fields are serialized.
	logger.Warnw("counts", "tile", tileCount{Level: 2, Count: 9, flat: 44})
	assertLogMatches(t, notStdout,
		"2023-10-30T09:12:09.459Z\tWARN\textractor\tlogging/impl_test.go:80\tcounts\t{\"tile\":{\"Level\":2,\"Count\":9}}")
}

func TestSubloggerAndFields(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := &impl{
		name:      "stereoorb",
		level:     NewAtomicLevelAt(DEBUG),
		inUTC:     true,
		appenders: []Appender{NewWriterAppender(notStdout)},
	}

	left := logger.Sublogger("left").WithFields("session", "abc")
	left.Debugw("level", "n", 0)
	assertLogMatches(t, notStdout,
		"2023-10-30T09:12:09.459Z\tDEBUG\tstereoorb.left\tlogging/impl_test.go:96\tlevel\t{\"n\":0,\"session\":\"abc\"}")

	// The parent is unaffected by the sublogger's fields.
	logger.Info("parent")
	assertLogMatches(t, notStdout,
		"2023-10-30T09:12:09.459Z\tINFO\tstereoorb\tlogging/impl_test.go:101\tparent")
}

func TestLevelFiltering(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	logger.SetLevel(WARN)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")
	logger.Errorw("kept too", "k", 1)
	test.That(t, observed.Len(), test.ShouldEqual, 2)
	test.That(t, observed.FilterMessage("kept").Len(), test.ShouldEqual, 1)

	// A debug-mode context bypasses the level.
	logger.CDebugw(EnableDebugMode(context.Background(), ""), "traced")
	test.That(t, observed.FilterMessage("traced").Len(), test.ShouldEqual, 1)
}

func TestLevelFromString(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"Warn", WARN},
		{"warning", WARN},
		{"error", ERROR},
	} {
		level, err := LevelFromString(tc.in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, tc.expected)
	}

	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)

	var level Level
	test.That(t, json.Unmarshal([]byte(`"error"`), &level), test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, ERROR)
	out, err := json.Marshal(WARN)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual, `"warn"`)
}

func TestDebugModeContext(t *testing.T) {
	test.That(t, IsDebugMode(context.Background()), test.ShouldBeFalse)
	ctx := EnableDebugMode(context.Background(), "frame7")
	test.That(t, DebugKey(ctx), test.ShouldEqual, "frame7")
	// the mark survives derived contexts
	test.That(t, IsDebugMode(context.WithoutCancel(ctx)), test.ShouldBeTrue)
	test.That(t, len(DebugKey(EnableDebugMode(context.Background(), ""))), test.ShouldEqual, 6)

	buf := &bytes.Buffer{}
	logger := NewWriterLogger("extractor", buf, WARN)
	logger.CDebugw(context.Background(), "dropped")
	test.That(t, buf.Len(), test.ShouldEqual, 0)
	logger.CDebugw(ctx, "traced", "frame", 7)
	assertLogMatches(t, buf,
		"2023-10-30T09:12:09.459Z\tDEBUG\textractor\tlogging/impl_test.go:150\ttraced\t{\"frame\":7,\"trace\":\"frame7\"}")
}

func TestUnpairedKey(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	logger.Infow("odd", "a", 1, "dangling")
	entries := observed.FilterMessage("odd").All()
	test.That(t, len(entries), test.ShouldEqual, 1)
	fields := entries[0].ContextMap()
	test.That(t, fields["a"], test.ShouldEqual, int64(1))
	test.That(t, fields["dangling"], test.ShouldNotBeNil)
}
