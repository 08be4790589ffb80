package logging

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// impl fans every enabled entry out to its appenders. Children made with Sublogger share the
// parent's appenders but own their level.
type impl struct {
	name  string
	level AtomicLevel
	inUTC bool

	appenders []Appender
}

type logEntry struct {
	zapcore.Entry
	fields []zapcore.Field
}

// fill sets the message and fields of an entry.
type fill func(entry *logEntry)

func message(args []interface{}) fill {
	return func(entry *logEntry) { entry.Message = fmt.Sprint(args...) }
}

func messagef(template string, args []interface{}) fill {
	return func(entry *logEntry) { entry.Message = fmt.Sprintf(template, args...) }
}

// unpairedKey is logged as the value of a trailing key. It must stay a string, an error
// value carrying a stack adds a "<key>Verbose" field.
const unpairedKey = "unpaired log key"

// messagew pairs up keysAndValues as key, value, key, value. A trailing key without a value is
// kept with unpairedKey as its value.
func messagew(msg string, keysAndValues []interface{}) fill {
	return func(entry *logEntry) {
		entry.Message = msg
		entry.fields = make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
		for i := 0; i < len(keysAndValues); i += 2 {
			key, ok := keysAndValues[i].(string)
			if !ok {
				key = fmt.Sprint(keysAndValues[i])
			}
			var val interface{} = unpairedKey
			if i+1 < len(keysAndValues) {
				val = keysAndValues[i+1]
			}
			entry.fields = append(entry.fields, zap.Any(key, val))
		}
	}
}

// enabled reports whether an entry at level is written. A global debug level opens every
// logger; forced is set for context loggers whose context asked for debug output.
func (imp *impl) enabled(level Level, forced bool) bool {
	return forced || GlobalLogLevel.Level() == zapcore.DebugLevel || level >= imp.level.Get()
}

// emit must be called directly by the exported log methods so the caller lookup lands on the
// code that logged.
func (imp *impl) emit(level Level, forced bool, f fill) {
	if !imp.enabled(level, forced) {
		return
	}
	entry := imp.newEntry(level)
	f(entry)
	for _, appender := range imp.appenders {
		if err := appender.Write(entry.Entry, entry.fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func (imp *impl) newEntry(level Level) *logEntry {
	now := time.Now()
	if imp.inUTC {
		now = now.UTC()
	}
	return &logEntry{Entry: zapcore.Entry{
		Time:       now,
		Level:      level.AsZap(),
		LoggerName: imp.name,
		Caller:     callerOf(),
	}}
}

// callerOf walks past itself, newEntry, emit and the exported log method.
func callerOf() zapcore.EntryCaller {
	const skip = 4
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return zapcore.EntryCaller{}
	}
	caller := zapcore.EntryCaller{Defined: true, PC: pc, File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		caller.Function = fn.Name()
	}
	return caller
}

func (imp *impl) Name() string {
	return imp.name
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	child := &impl{
		name:      name,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		appenders: imp.appenders,
	}
	registry.register(name, child)
	return child
}

func (imp *impl) Sync() error {
	var errs error
	for _, appender := range imp.appenders {
		errs = multierr.Append(errs, appender.Sync())
	}
	return errs
}

func (imp *impl) Debug(args ...interface{}) { imp.emit(DEBUG, false, message(args)) }

func (imp *impl) Debugf(template string, args ...interface{}) {
	imp.emit(DEBUG, false, messagef(template, args))
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.emit(DEBUG, false, messagew(msg, keysAndValues))
}

func (imp *impl) CDebug(ctx context.Context, args ...interface{}) {
	imp.emit(DEBUG, IsDebugMode(ctx), message(args))
}

func (imp *impl) CDebugf(ctx context.Context, template string, args ...interface{}) {
	imp.emit(DEBUG, IsDebugMode(ctx), messagef(template, args))
}

func (imp *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	imp.emit(DEBUG, IsDebugMode(ctx), messagew(msg, keysAndValues))
}

func (imp *impl) Info(args ...interface{}) { imp.emit(INFO, false, message(args)) }

func (imp *impl) Infof(template string, args ...interface{}) {
	imp.emit(INFO, false, messagef(template, args))
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.emit(INFO, false, messagew(msg, keysAndValues))
}

func (imp *impl) CInfof(ctx context.Context, template string, args ...interface{}) {
	imp.emit(INFO, IsDebugMode(ctx), messagef(template, args))
}

func (imp *impl) Warn(args ...interface{}) { imp.emit(WARN, false, message(args)) }

func (imp *impl) Warnf(template string, args ...interface{}) {
	imp.emit(WARN, false, messagef(template, args))
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.emit(WARN, false, messagew(msg, keysAndValues))
}

func (imp *impl) Error(args ...interface{}) { imp.emit(ERROR, false, message(args)) }

func (imp *impl) Errorf(template string, args ...interface{}) {
	imp.emit(ERROR, false, messagef(template, args))
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.emit(ERROR, false, messagew(msg, keysAndValues))
}
