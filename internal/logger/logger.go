// Package logger provides the printf-style logger used across the project,
// backed by logrus. Packages that only need to log depend on the small
// Logger interface below rather than on logrus directly.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the logging interface consumed by the rest of the codebase.
type Logger interface {
	Info(format string, v ...interface{})
	Debug(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// LogrusLogger implements Logger on top of a logrus instance.
type LogrusLogger struct {
	l *logrus.Logger
}

// New creates a logger at the given level ("debug", "info", "warn", "error").
// Unknown levels fall back to info.
func New(level string) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	switch strings.ToLower(level) {
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		l.SetLevel(logrus.WarnLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}

	return &LogrusLogger{l: l}
}

// NewSilent creates a logger that discards everything. Used in tests.
func NewSilent() *LogrusLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &LogrusLogger{l: l}
}

func (g *LogrusLogger) Info(format string, v ...interface{})  { g.l.Infof(format, v...) }
func (g *LogrusLogger) Debug(format string, v ...interface{}) { g.l.Debugf(format, v...) }
func (g *LogrusLogger) Warn(format string, v ...interface{})  { g.l.Warnf(format, v...) }
func (g *LogrusLogger) Error(format string, v ...interface{}) { g.l.Errorf(format, v...) }
