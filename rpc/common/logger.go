package common

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/sirupsen/logrus"
)

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// logSink receives the output of every package logger
var logSink = newLogSink(os.Stdout)

func newLogSink(out io.Writer) *logrus.Logger {
	formatter := new(logrus.TextFormatter)
	formatter.TimestampFormat = "02-01-2006 15:04:05"
	formatter.FullTimestamp = true

	sink := logrus.New()
	sink.SetOutput(out)
	sink.SetFormatter(formatter)
	// filtering happens per package in secstoreLogger
	sink.SetLevel(logrus.DebugLevel)
	return sink
}

// secstoreLogger adapts a logrus entry to the dragonboat logger interface
type secstoreLogger struct {
	level logger.LogLevel
	entry *logrus.Entry
}

func (l *secstoreLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *secstoreLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.entry.Debugf(format, args...)
	}
}

func (l *secstoreLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.entry.Infof(format, args...)
	}
}

func (l *secstoreLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.entry.Warnf(format, args...)
	}
}

func (l *secstoreLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.entry.Errorf(format, args...)
	}
}

func (l *secstoreLogger) Panicf(format string, args ...interface{}) {
	l.entry.Panicf(format, args...)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger creates a named package logger writing to the shared sink
func CreateLogger(pkgName string) logger.ILogger {
	return &secstoreLogger{
		level: logger.INFO,
		entry: logSink.WithField("pkg", pkgName),
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// dragonboatLoggers are the loggers created inside dragonboat
var dragonboatLoggers = []string{"raft", "raftdb", "rsm", "transport", "dragonboat", "grpc", "util", "logdb"}

// secstoreLoggers are the loggers created by this module
var secstoreLoggers = []string{"store", "db", "transport/rpc", "rpc"}

// InitLoggers installs the logger factory and sets the level of all loggers
func InitLoggers(logLevel string) error {
	level, err := ParseLogLevel(logLevel)
	if err != nil {
		return err
	}

	logger.SetLoggerFactory(CreateLogger)

	for _, name := range dragonboatLoggers {
		logger.GetLogger(name).SetLevel(level)
	}
	for _, name := range secstoreLoggers {
		logger.GetLogger(name).SetLevel(level)
	}
	return nil
}
