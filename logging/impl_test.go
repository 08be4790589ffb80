package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
)

type basicStruct struct {
	X int
	y string
}

// assertLogMatches will fuzzy match log lines. It checks the time format by length, and the
// caller by file name only, since line numbers move.
func assertLogMatches(t *testing.T, actual *bytes.Buffer, expected string) {
	t.Helper()

	output, err := actual.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)

	actualParts := strings.Split(strings.TrimSuffix(output, "\n"), "\t")
	expectedParts := strings.Split(expected, "\t")
	test.That(t, len(actualParts), test.ShouldEqual, len(expectedParts))

	test.That(t, len(actualParts[0]), test.ShouldEqual, len(expectedParts[0]))
	// level and logger name
	test.That(t, actualParts[1], test.ShouldEqual, expectedParts[1])
	test.That(t, actualParts[2], test.ShouldEqual, expectedParts[2])

	actualFilename, _, found := strings.Cut(actualParts[3], ":")
	test.That(t, found, test.ShouldBeTrue)
	expectedFilename, _, _ := strings.Cut(expectedParts[3], ":")
	test.That(t, actualFilename, test.ShouldEqual, expectedFilename)

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
	logger := &impl{"impl", NewAtomicLevelAt(DEBUG), true, []Appender{NewWriterAppender(notStdout)}}

	logger.Info("impl Info log")
	assertLogMatches(t, notStdout,
		"2023-10-30T13:12:09.459Z\tINFO\timpl\tlogging/impl_test.go:58\timpl Info log")

	logger.Infof("impl %s log", "infof")
	assertLogMatches(t, notStdout,
		"2023-10-30T13:12:09.459Z\tINFO\timpl\tlogging/impl_test.go:62\timpl infof log")

	logger.Warnw("impl logw", "key", "value", "struct", basicStruct{1, "hidden"})
	assertLogMatches(t, notStdout,
		"2023-10-30T13:12:09.459Z\tWARN\timpl\tlogging/impl_test.go:66\timpl logw\t"+`{"key":"value","struct":{"X":1}}`)

	logger.Errorw("unpaired", "lonely")
	assertLogMatches(t, notStdout,
		"2023-10-30T13:12:09.459Z\tERROR\timpl\tlogging/impl_test.go:70\tunpaired\t"+`{"lonely":"unpaired log key"}`)
}

func TestLevels(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := &impl{"levels", NewAtomicLevelAt(WARN), true, []Appender{NewWriterAppender(notStdout)}}

	logger.Debug("dropped")
	logger.Info("dropped")
	test.That(t, notStdout.Len(), test.ShouldEqual, 0)

	logger.Warn("kept")
	test.That(t, notStdout.String(), test.ShouldContainSubstring, "kept")
	notStdout.Reset()

	traced := EnableDebugMode(context.Background(), "")
	test.That(t, len(DebugTag(traced)), test.ShouldEqual, 6)
	logger.CDebugf(traced, "traced %d", 1)
	test.That(t, notStdout.String(), test.ShouldContainSubstring, "traced 1")
	notStdout.Reset()

	logger.SetLevel(DEBUG)
	logger.Debugf("now %s", "visible")
	test.That(t, notStdout.String(), test.ShouldContainSubstring, "now visible")
	test.That(t, logger.GetLevel(), test.ShouldEqual, DEBUG)
}

func TestObservedTestLogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	sub := logger.Sublogger("cursor").Sublogger("virtual")
	test.That(t, sub.Name(), test.ShouldEqual, "cursor.virtual")

	sub.Infow("issued", "action", "Translate")
	test.That(t, logs.FilterMessage("issued").Len(), test.ShouldEqual, 1)
	entry := logs.All()[0]
	test.That(t, entry.LoggerName, test.ShouldEqual, "cursor.virtual")
	test.That(t, entry.ContextMap()["action"], test.ShouldEqual, "Translate")

	sub.Warnw("odd fields", "lonely")
	odd := logs.FilterMessage("odd fields").All()
	test.That(t, len(odd), test.ShouldEqual, 1)
	test.That(t, odd[0].ContextMap(), test.ShouldResemble, map[string]interface{}{"lonely": "unpaired log key"})
	test.That(t, logger.Sync(), test.ShouldBeNil)
}

func TestFileAppender(t *testing.T) {
	_, err := NewFileAppender("", 1, 1)
	test.That(t, err, test.ShouldNotBeNil)

	path := filepath.Join(t.TempDir(), "machina.log")
	appender, err := NewFileAppender(path, 1, 1)
	test.That(t, err, test.ShouldBeNil)

	logger := NewBlankLogger("file")
	logger.AddAppender(appender)
	logger.Info("to disk")
	test.That(t, appender.Close(), test.ShouldBeNil)

	//nolint:gosec
	contents, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(contents), test.ShouldContainSubstring, "INFO\tfile\t")
	test.That(t, string(contents), test.ShouldContainSubstring, "to disk")
}

func TestLevelFromString(t *testing.T) {
	for input, expected := range map[string]Level{
		"debug":   DEBUG,
		"INFO":    INFO,
		"Warning": WARN,
		" warn ":  WARN,
		"error":   ERROR,
	} {
		level, err := LevelFromString(input)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, expected)
	}

	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)

	var level Level
	test.That(t, json.Unmarshal([]byte(`"warn"`), &level), test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
	out, err := json.Marshal(ERROR)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual, `"error"`)
}
