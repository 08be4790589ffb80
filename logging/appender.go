package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultTimeFormatStr is the timestamp layout used by every text appender.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Appender is an output for log entries. This is a subset of the `zapcore.Core` interface, so any
// zap core (such as the test observer) can be added as an appender directly.
type Appender interface {
	// Write submits a structured log entry to the appender for logging.
	Write(zapcore.Entry, []zapcore.Field) error
	// Sync is for signaling that any buffered logs to `Write` should be flushed. E.g: at shutdown.
	Sync() error
}

// ConsoleAppender writes tab separated log lines to an io.Writer.
type ConsoleAppender struct {
	io.Writer
}

// NewStdoutAppender creates a new appender that outputs to stdout.
func NewStdoutAppender() ConsoleAppender {
	return ConsoleAppender{os.Stdout}
}

// NewWriterAppender creates a new appender that outputs to the given writer.
func NewWriterAppender(writer io.Writer) ConsoleAppender {
	return ConsoleAppender{writer}
}

// Write outputs the log entry as "time level name caller message fields", tab separated.
func (appender ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	line, err := formatLine(entry, fields)
	if _, wErr := fmt.Fprintln(appender.Writer, line); wErr != nil {
		return wErr
	}
	return err
}

// Sync is a no-op.
func (appender ConsoleAppender) Sync() error {
	return nil
}

// FileAppender writes log lines to a size-rotated file.
type FileAppender struct {
	ConsoleAppender
	roller *lumberjack.Logger
}

// NewFileAppender creates an appender writing to path. The file is rotated once it reaches
// maxSizeMB, and at most maxBackups rotated files are kept.
func NewFileAppender(path string, maxSizeMB, maxBackups int) (*FileAppender, error) {
	if path == "" {
		return nil, errors.New("log file path is empty")
	}
	roller := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
	return &FileAppender{ConsoleAppender: NewWriterAppender(roller), roller: roller}, nil
}

// Close closes the underlying file.
func (appender *FileAppender) Close() error {
	return appender.roller.Close()
}

func formatLine(entry zapcore.Entry, fields []zapcore.Field) (string, error) {
	const maxLength = 6
	toPrint := make([]string, 0, maxLength)
	toPrint = append(toPrint, entry.Time.Format(DefaultTimeFormatStr))
	toPrint = append(toPrint, strings.ToUpper(entry.Level.String()))
	if entry.LoggerName != "" {
		toPrint = append(toPrint, entry.LoggerName)
	}
	if entry.Caller.Defined {
		toPrint = append(toPrint, callerToString(&entry.Caller))
	}
	toPrint = append(toPrint, entry.Message)
	if len(fields) == 0 {
		return strings.Join(toPrint, "\t"), nil
	}

	// Use zap's json encoder which will encode our slice of fields in-order. Call it with an empty
	// Entry object such that only the fields become "map-ified".
	jsonEncoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true})
	buf, err := jsonEncoder.EncodeEntry(zapcore.Entry{}, fields)
	if err != nil {
		return strings.Join(toPrint, "\t"), err
	}
	toPrint = append(toPrint, buf.String())
	buf.Free()
	return strings.Join(toPrint, "\t"), nil
}

// callerToString returns "<package>/<file>:<line>", e.g. "cursor/cursor.go:120".
func callerToString(caller *zapcore.EntryCaller) string {
	return caller.TrimmedPath()
}
