// Package logger is the process-wide structured logger. Calls before Init
// are dropped.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/zfogg/feedsync/pkg/config"
)

var (
	current atomic.Pointer[log.Logger]

	sinkMu sync.Mutex
	sink   io.Closer
)

// Init logs to the configured log.file, falling back to stderr when it
// cannot be opened. verbose forces the debug level over log.level.
func Init(verbose bool) {
	level, err := log.ParseLevel(config.GetString("log.level"))
	if err != nil {
		level = log.InfoLevel
	}
	if verbose {
		level = log.DebugLevel
	}

	var w io.Writer = os.Stderr
	var closer io.Closer
	if path := config.GetString("log.file"); path != "" {
		if f, err := openLogFile(path); err == nil {
			w, closer = f, f
		}
	}

	InitWithWriter(w, level)

	sinkMu.Lock()
	if sink != nil {
		_ = sink.Close()
	}
	sink = closer
	sinkMu.Unlock()
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
}

// InitWithWriter logs to w at level
func InitWithWriter(w io.Writer, level log.Level) {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "feedsync",
		Level:           level,
	})
	current.Store(l)
}

// Close flushes and closes the log file opened by Init
func Close() {
	current.Store(nil)
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if sink != nil {
		_ = sink.Close()
		sink = nil
	}
}

// With returns a child logger carrying keyvals, or nil before Init
func With(keyvals ...interface{}) *log.Logger {
	if l := current.Load(); l != nil {
		return l.With(keyvals...)
	}
	return nil
}

func Debug(msg string, keyvals ...interface{}) {
	if l := current.Load(); l != nil {
		l.Debug(msg, keyvals...)
	}
}

func Info(msg string, keyvals ...interface{}) {
	if l := current.Load(); l != nil {
		l.Info(msg, keyvals...)
	}
}

func Warn(msg string, keyvals ...interface{}) {
	if l := current.Load(); l != nil {
		l.Warn(msg, keyvals...)
	}
}

func Error(msg string, keyvals ...interface{}) {
	if l := current.Load(); l != nil {
		l.Error(msg, keyvals...)
	}
}
