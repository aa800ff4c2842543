package console

import (
	"io"

	"github.com/charmbracelet/log"
)

// Logger is the process logger. Messages take optional key/value pairs:
//
//	log.Info("listening", "addr", ":3000")
type Logger struct {
	l *log.Logger
}

func New(w io.Writer) Logger {
	if w == nil {
		w = io.Discard
	}
	return Logger{l: log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "devflow",
	})}
}

// Discard returns a logger that drops everything.
func Discard() Logger {
	return New(io.Discard)
}

// SetVerbose enables debug output.
func (l Logger) SetVerbose(verbose bool) {
	if l.l == nil {
		return
	}
	if verbose {
		l.l.SetLevel(log.DebugLevel)
	} else {
		l.l.SetLevel(log.InfoLevel)
	}
}

// With returns a logger that always carries keyvals.
func (l Logger) With(keyvals ...any) Logger {
	if l.l == nil {
		return l
	}
	return Logger{l: l.l.With(keyvals...)}
}

func (l Logger) Debug(message string, keyvals ...any) {
	if l.l != nil {
		l.l.Debug(message, keyvals...)
	}
}

func (l Logger) Info(message string, keyvals ...any) {
	if l.l != nil {
		l.l.Info(message, keyvals...)
	}
}

func (l Logger) Warn(message string, keyvals ...any) {
	if l.l != nil {
		l.l.Warn(message, keyvals...)
	}
}

func (l Logger) Error(message string, keyvals ...any) {
	if l.l != nil {
		l.l.Error(message, keyvals...)
	}
}
