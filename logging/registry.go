package logging

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// LoggerPatternConfig sets the level of every logger whose name matches Pattern. Patterns are
// dot separated logger names where "*" matches anything, e.g. "machina.cursor.*".
type LoggerPatternConfig struct {
	Pattern string `json:"pattern"`
	Level   string `json:"level"`
}

// e.g. "foo", "foo-bar" or "*", optionally dot separated: "machina.*.write".
var loggerPatternRegexp = regexp.MustCompile(`^([a-zA-Z0-9]+([_-]*[a-zA-Z0-9]+)*|\*)(\.([a-zA-Z0-9]+([_-]*[a-zA-Z0-9]+)*|\*))*$`)

// Validate checks the pattern syntax and the level name.
func (lpc LoggerPatternConfig) Validate() error {
	if !loggerPatternRegexp.MatchString(lpc.Pattern) {
		return errors.Errorf("invalid logger pattern %q", lpc.Pattern)
	}
	_, err := LevelFromString(lpc.Level)
	return err
}

func buildRegexFromPattern(pattern string) *regexp.Regexp {
	var matcher strings.Builder
	matcher.WriteRune('^')
	for _, ch := range pattern {
		switch ch {
		case '*':
			matcher.WriteString(`.*`)
		case '.':
			matcher.WriteString(`\.`)
		default:
			matcher.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	matcher.WriteRune('$')
	return regexp.MustCompile(matcher.String())
}

type loggerRegistry struct {
	mu       sync.RWMutex
	loggers  map[string]Logger
	patterns []LoggerPatternConfig
}

var registry = newLoggerRegistry()

func newLoggerRegistry() *loggerRegistry {
	return &loggerRegistry{loggers: make(map[string]Logger)}
}

func (lr *loggerRegistry) register(name string, logger Logger) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.loggers[name] = logger
	lr.applyPatternsLocked(name, logger)
}

func (lr *loggerRegistry) applyPatternsLocked(name string, logger Logger) {
	for _, lpc := range lr.patterns {
		if !buildRegexFromPattern(lpc.Pattern).MatchString(name) {
			continue
		}
		if level, err := LevelFromString(lpc.Level); err == nil {
			logger.SetLevel(level)
		}
	}
}

func (lr *loggerRegistry) loggerNamed(name string) (Logger, bool) {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	logger, ok := lr.loggers[name]
	return logger, ok
}

func (lr *loggerRegistry) updateConfig(patterns []LoggerPatternConfig) error {
	for _, lpc := range patterns {
		if err := lpc.Validate(); err != nil {
			return err
		}
	}

	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.patterns = patterns
	for name, logger := range lr.loggers {
		lr.applyPatternsLocked(name, logger)
	}
	return nil
}

func (lr *loggerRegistry) names() []string {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	names := make([]string, 0, len(lr.loggers))
	for name := range lr.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoggerNamed returns the registered logger with the given name, if any.
func LoggerNamed(name string) (Logger, bool) {
	return registry.loggerNamed(name)
}

// UpdateLoggerLevels applies the patterns, in order, to every registered logger and to loggers
// registered afterwards. Later patterns win.
func UpdateLoggerLevels(patterns []LoggerPatternConfig) error {
	return registry.updateConfig(patterns)
}

// RegisteredLoggerNames returns the sorted names of all registered loggers.
func RegisteredLoggerNames() []string {
	return registry.names()
}
