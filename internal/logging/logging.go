// Package logging wraps logrus behind a small interface, mirroring the
// original's Logging class (original_source/src/logging.py) which wraps
// loguru with level selection from debug-mode and file rotation from
// log.retention/log.format.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the facade every core component depends on. Kept narrow so
// components don't reach for logrus-specific APIs directly.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
}

type logrusLogger struct {
	entry *logrus.Entry
}

// Options configures the logger, mirroring the original's
// Logging(retention, debug_mode, format) constructor.
type Options struct {
	DebugMode bool
	Format    string        // logrus text formatter timestamp format; empty uses the default
	Retention time.Duration // retained for parity with the config contract; rotation itself is out of scope
	Output    io.Writer     // defaults to os.Stderr
}

// New builds a Logger per Options.
func New(opts Options) Logger {
	base := logrus.New()
	if opts.Output != nil {
		base.SetOutput(opts.Output)
	} else {
		base.SetOutput(os.Stderr)
	}
	base.SetLevel(logrus.InfoLevel)
	if opts.DebugMode {
		base.SetLevel(logrus.DebugLevel)
	}
	formatter := &logrus.TextFormatter{FullTimestamp: true}
	if opts.Format != "" {
		formatter.TimestampFormat = opts.Format
	}
	base.SetFormatter(formatter)

	return &logrusLogger{entry: logrus.NewEntry(base)}
}

func (l *logrusLogger) Debug(args ...any)                { l.entry.Debug(args...) }
func (l *logrusLogger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Info(args ...any)                 { l.entry.Info(args...) }
func (l *logrusLogger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warn(args ...any)                 { l.entry.Warn(args...) }
func (l *logrusLogger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Error(args ...any)                { l.entry.Error(args...) }
func (l *logrusLogger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

func (l *logrusLogger) WithField(key string, value any) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}

func (l *logrusLogger) WithFields(fields map[string]any) Logger {
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}
