package common

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// --------------------------------------------------------------------------
// Named logger (zerolog backed)
// --------------------------------------------------------------------------

// ILogger is the logging interface handed to the individual packages
type ILogger interface {
	SetLevel(level zerolog.Level)
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// relLogger implements the ILogger interface on top of zerolog
type relLogger struct {
	name string
	zl   zerolog.Logger
}

func (l *relLogger) SetLevel(level zerolog.Level) {
	l.zl = l.zl.Level(level)
}

func (l *relLogger) Debugf(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}

func (l *relLogger) Infof(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

func (l *relLogger) Warningf(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

func (l *relLogger) Errorf(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

var (
	loggerMu     sync.Mutex
	loggers      = make(map[string]*relLogger)
	defaultLevel = zerolog.InfoLevel

	// all loggers write to stderr so command output on stdout stays parseable
	baseLogger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
)

// GetLogger returns the logger for the given component, creating it on first use
func GetLogger(name string) ILogger {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if l, ok := loggers[name]; ok {
		return l
	}
	l := &relLogger{
		name: name,
		zl:   baseLogger.With().Str("sub", name).Logger().Level(defaultLevel),
	}
	loggers[name] = l
	return l
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// parseLogLevel converts a string level to zerolog.Level
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warning", "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		panic(fmt.Sprintf("invalid log level: %s. must be one of debug, info, warn, error", level))
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// InitLoggers applies the configured log level to all registered loggers
// and to loggers created afterwards
func InitLoggers(config CoordinatorConfig) {
	level := parseLogLevel(config.LogLevel)

	loggerMu.Lock()
	defer loggerMu.Unlock()

	defaultLevel = level
	for _, l := range loggers {
		l.zl = l.zl.Level(level)
	}
}
