package config

import (
	"sync"

	"go.uber.org/zap/zapcore"

	"go.viam.com/machina/logging"
)

var globalLogger struct {
	// These variables are initialized once at startup. No need for special synchronization.
	logger           logging.Logger
	cmdLineDebugFlag bool

	// Changed every time the config file is re-read.
	mu                  sync.Mutex
	fileConfigDebugFlag bool
}

// InitLoggingSettings initializes the global logging settings.
func InitLoggingSettings(logger logging.Logger, cmdLineDebugFlag bool) {
	globalLogger.logger = logger
	globalLogger.cmdLineDebugFlag = cmdLineDebugFlag
	if cmdLineDebugFlag {
		logging.GlobalLogLevel.SetLevel(zapcore.DebugLevel)
	} else {
		logging.GlobalLogLevel.SetLevel(zapcore.InfoLevel)
	}
	globalLogger.logger.Info("Log level initialized: ", logging.GlobalLogLevel.Level())
}

// ApplyLogConfig pushes the logging section of conf to logger and to the logger registry.
func ApplyLogConfig(conf *Config, logger logging.Logger) error {
	logger.SetLevel(conf.LogLevel)
	UpdateFileConfigDebug(conf.Debug)
	return logging.UpdateLoggerLevels(conf.Log)
}

// UpdateFileConfigDebug is used to update the debug flag whenever the config file is refreshed.
func UpdateFileConfigDebug(fileDebug bool) {
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()

	globalLogger.fileConfigDebugFlag = fileDebug
	refreshLogLevelInLock()
}

func refreshLogLevelInLock() {
	var newLevel zapcore.Level
	if globalLogger.cmdLineDebugFlag || globalLogger.fileConfigDebugFlag {
		newLevel = zapcore.DebugLevel
	} else {
		newLevel = zapcore.InfoLevel
	}

	if logging.GlobalLogLevel.Level() == newLevel {
		return
	}
	logging.GlobalLogLevel.SetLevel(newLevel)
	if globalLogger.logger != nil {
		globalLogger.logger.Info("New log level: ", newLevel)
	}
}
