/**
 * @description
 * Structured logger for the Stocky backend.
 * Info/Warn messages go to stdout, errors to stderr, both as JSON lines.
 *
 * @dependencies
 * - github.com/sirupsen/logrus
 */

package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var (
	// InfoLogger writes to stdout
	InfoLogger *logrus.Logger
	// ErrorLogger writes to stderr (for actual errors)
	ErrorLogger *logrus.Logger
)

// Fields is an alias so callers don't need to import logrus directly.
type Fields = logrus.Fields

func init() {
	InfoLogger = New(os.Stdout)
	ErrorLogger = New(os.Stderr)
}

// SetLevel changes the level of both loggers. Unknown levels keep the current one.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return
	}
	InfoLogger.SetLevel(lvl)
	ErrorLogger.SetLevel(lvl)
}

// Debug logs a debug message to stdout
func Debug(format string, v ...interface{}) {
	InfoLogger.Debugf(format, v...)
}

// Info logs an info message to stdout
func Info(format string, v ...interface{}) {
	InfoLogger.Infof(format, v...)
}

// Warn logs a warning to stdout
func Warn(format string, v ...interface{}) {
	InfoLogger.Warnf(format, v...)
}

// Error logs an error message to stderr
func Error(format string, v ...interface{}) {
	ErrorLogger.Errorf(format, v...)
}

// Fatal logs an error and exits
func Fatal(format string, v ...interface{}) {
	ErrorLogger.Fatalf(format, v...)
}

// WithFields returns an entry carrying structured context. Entries at error
// level and above should be logged through ErrorLogger.
func WithFields(fields Fields) *logrus.Entry {
	return InfoLogger.WithFields(fields)
}

// New creates a new JSON logger that writes to the specified writer
func New(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}
