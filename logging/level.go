package logging

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap/zapcore"
)

// Level is the severity of a log entry.
type Level int32

const (
	// DEBUG log level.
	DEBUG Level = iota - 1
	// INFO log level.
	INFO
	// WARN log level.
	WARN
	// ERROR log level.
	ERROR
)

func (level Level) String() string {
	switch level {
	case DEBUG:
		return "Debug"
	case INFO:
		return "Info"
	case WARN:
		return "Warn"
	case ERROR:
		return "Error"
	}
	return "Unknown"
}

// LevelFromString parses a level name, ignoring case. "warning" is accepted as an alias of "warn".
func LevelFromString(inp string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(inp)) {
	case "debug":
		return DEBUG, nil
	case "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	}
	return DEBUG, errors.Errorf("unknown log level: %q", inp)
}

// AsZap converts the level to its zapcore equivalent. The numeric values line up.
func (level Level) AsZap() zapcore.Level {
	return zapcore.Level(level)
}

// MarshalJSON encodes the level as its lowercase name.
func (level Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.ToLower(level.String()))
}

// UnmarshalJSON decodes a level name.
func (level *Level) UnmarshalJSON(data []byte) error {
	var levelStr string
	if err := json.Unmarshal(data, &levelStr); err != nil {
		return err
	}

	var err error
	*level, err = LevelFromString(levelStr)
	return err
}

// AtomicLevel is a level that can be read and changed concurrently.
type AtomicLevel struct {
	val *atomic.Int32
}

// NewAtomicLevelAt returns an AtomicLevel initialized to the given level.
func NewAtomicLevelAt(initLevel Level) AtomicLevel {
	return AtomicLevel{atomic.NewInt32(int32(initLevel))}
}

// Set changes the level.
func (level AtomicLevel) Set(newLevel Level) {
	level.val.Store(int32(newLevel))
}

// Get returns the current level.
func (level AtomicLevel) Get() Level {
	return Level(level.val.Load())
}

// Enabled satisfies zapcore.LevelEnabler.
func (level AtomicLevel) Enabled(zl zapcore.Level) bool {
	return zl >= level.Get().AsZap()
}
