// Package logger provides the leveled, slog-backed logging used by the
// thread pool and the benchmark harness.
//
// Logs go to stdout in text format until InitLogFile or SetOutput redirects
// them. Severity is controlled process-wide through SetLogLevel.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity levels understood by SetLogLevel.
const (
	LevelTrace   = "TRACE"
	LevelDebug   = "DEBUG"
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
	LevelOff     = "OFF"
)

const (
	levelTrace = slog.Level(-8)
	levelOff   = slog.Level(12)
)

var (
	mu            sync.Mutex
	programLevel  = new(slog.LevelVar)
	defaultFormat = "text"
	defaultOut    io.Writer = os.Stdout
	defaultLogger           = slog.New(newHandler(os.Stdout, "text"))
	rotator       *lumberjack.Logger
)

// RotateConfig controls rotation of the log file opened by InitLogFile.
type RotateConfig struct {
	MaxFileSizeMB   int
	BackupFileCount int
	Compress        bool
}

// DefaultRotateConfig keeps five compressed backups of 512MB each.
func DefaultRotateConfig() RotateConfig {
	return RotateConfig{
		MaxFileSizeMB:   512,
		BackupFileCount: 5,
		Compress:        true,
	}
}

// InitLogFile redirects all logging to filename, rotating it according to
// rc. An empty filename keeps logging on stdout.
func InitLogFile(filename string, format string, rc RotateConfig) error {
	if filename == "" {
		return SetOutput(os.Stdout, format)
	}

	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening log file %q: %w", filename, err)
	}
	// lumberjack reopens the file itself; we only wanted to fail early on
	// an unwritable path.
	f.Close()

	lj := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    rc.MaxFileSizeMB,
		MaxBackups: rc.BackupFileCount,
		Compress:   rc.Compress,
	}

	if err := SetOutput(lj, format); err != nil {
		return err
	}

	mu.Lock()
	rotator = lj
	mu.Unlock()
	return nil
}

// SetOutput makes the default logger write to w using the given format
// ("text" or "json").
func SetOutput(w io.Writer, format string) error {
	format = strings.ToLower(format)
	if format == "" {
		format = "text"
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported log format %q", format)
	}

	mu.Lock()
	defer mu.Unlock()
	defaultOut = w
	defaultFormat = format
	defaultLogger = slog.New(newHandler(w, format))
	return nil
}

// SetLogFormat switches between "text" and "json" output keeping the
// current destination.
func SetLogFormat(format string) error {
	mu.Lock()
	w := defaultOut
	mu.Unlock()
	return SetOutput(w, format)
}

// SetLogLevel sets the minimum severity that is emitted. Unknown levels
// are ignored.
func SetLogLevel(level string) {
	switch strings.ToUpper(level) {
	case LevelTrace:
		programLevel.Set(levelTrace)
	case LevelDebug:
		programLevel.Set(slog.LevelDebug)
	case LevelInfo:
		programLevel.Set(slog.LevelInfo)
	case LevelWarning:
		programLevel.Set(slog.LevelWarn)
	case LevelError:
		programLevel.Set(slog.LevelError)
	case LevelOff:
		programLevel.Set(levelOff)
	}
}

// Close flushes and closes the rotated log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if rotator == nil {
		return nil
	}
	err := rotator.Close()
	rotator = nil
	return err
}

func newHandler(w io.Writer, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       programLevel,
		ReplaceAttr: replaceAttr,
	}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// replaceAttr renames the level key to severity and gives the custom
// levels readable names.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.LevelKey:
		a.Key = "severity"
		level := a.Value.Any().(slog.Level)
		switch {
		case level < slog.LevelDebug:
			a.Value = slog.StringValue(LevelTrace)
		case level == slog.LevelWarn:
			a.Value = slog.StringValue(LevelWarning)
		}
	case slog.MessageKey:
		a.Key = "message"
	}
	return a
}

func current() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return defaultLogger
}

func logf(level slog.Level, format string, v ...interface{}) {
	l := current()
	if !l.Enabled(context.Background(), level) {
		return
	}
	l.Log(context.Background(), level, fmt.Sprintf(format, v...))
}

// Tracef prints the message with TRACE severity in the specified format.
func Tracef(format string, v ...interface{}) {
	logf(levelTrace, format, v...)
}

// Debugf prints the message with DEBUG severity in the specified format.
func Debugf(format string, v ...interface{}) {
	logf(slog.LevelDebug, format, v...)
}

// Infof prints the message with INFO severity in the specified format.
func Infof(format string, v ...interface{}) {
	logf(slog.LevelInfo, format, v...)
}

// Warnf prints the message with WARNING severity in the specified format.
func Warnf(format string, v ...interface{}) {
	logf(slog.LevelWarn, format, v...)
}

// Errorf prints the message with ERROR severity in the specified format.
func Errorf(format string, v ...interface{}) {
	logf(slog.LevelError, format, v...)
}
