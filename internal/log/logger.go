package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Verbosity levels
const (
	LevelQuiet = iota // Default: only errors and warnings
	LevelInfo         // -v: stage changes, cache hits, counts
	LevelDebug        // -vv: API calls, retries, SQL errors
	LevelTrace        // -vvv: request and prompt details
)

// Format selects the slog handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

const slogLevelTrace = slog.Level(-8)

var (
	mu         sync.Mutex
	verbosity  int
	logger     *slog.Logger
	output     io.Writer
	inProgress bool
)

// Initialize sets up the global text logger with the specified verbosity level.
func Initialize(level int, w io.Writer) {
	InitializeWithFormat(level, w, FormatText)
}

// InitializeWithFormat is Initialize with an explicit handler format.
// Long-running commands such as serve use FormatJSON.
func InitializeWithFormat(level int, w io.Writer, format Format) {
	mu.Lock()
	defer mu.Unlock()

	verbosity = level
	output = w
	logger = slog.New(newHandler(w, format, slogLevelFor(level)))
}

func slogLevelFor(level int) slog.Level {
	switch {
	case level >= LevelTrace:
		return slogLevelTrace
	case level >= LevelDebug:
		return slog.LevelDebug
	case level >= LevelInfo:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

func newHandler(w io.Writer, format Format, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Logger returns the underlying slog logger, e.g. for http.Server.ErrorLog.
func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Info logs at info level (-v)
func Info(msg string, args ...any) {
	logAt(LevelInfo, slog.LevelInfo, msg, args...)
}

// Debug logs at debug level (-vv)
func Debug(msg string, args ...any) {
	logAt(LevelDebug, slog.LevelDebug, msg, args...)
}

// Trace logs at trace level (-vvv)
func Trace(msg string, args ...any) {
	logAt(LevelTrace, slogLevelTrace, msg, args...)
}

// Warn logs at warn level (always visible)
func Warn(msg string, args ...any) {
	logAt(LevelQuiet, slog.LevelWarn, msg, args...)
}

// Error logs at error level (always visible)
func Error(msg string, args ...any) {
	logAt(LevelQuiet, slog.LevelError, msg, args...)
}

func logAt(min int, level slog.Level, msg string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if verbosity < min {
		return
	}
	clearProgress()
	logger.Log(context.Background(), level, msg, args...)
}

// Progress prints a progress message with carriage return (no newline).
// Only shown at info level or higher.
func Progress(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if verbosity >= LevelInfo {
		inProgress = true
		_, _ = fmt.Fprintf(output, "\r"+format, args...)
	}
}

// ProgressDone completes a progress line with "done" and newline
func ProgressDone() {
	mu.Lock()
	defer mu.Unlock()
	if verbosity >= LevelInfo && inProgress {
		_, _ = fmt.Fprintln(output, " done")
		inProgress = false
	}
}

// ProgressClear clears the current progress line
func ProgressClear() {
	mu.Lock()
	defer mu.Unlock()
	if inProgress {
		_, _ = fmt.Fprint(output, "\r\033[K")
		inProgress = false
	}
}

// clearProgress ensures we don't write over a progress line. Callers hold mu.
func clearProgress() {
	if inProgress {
		_, _ = fmt.Fprintln(output)
		inProgress = false
	}
}

// IsInfo returns true if info-level logging is enabled
func IsInfo() bool {
	return Verbosity() >= LevelInfo
}

// IsDebug returns true if debug-level logging is enabled
func IsDebug() bool {
	return Verbosity() >= LevelDebug
}

// IsTrace returns true if trace-level logging is enabled
func IsTrace() bool {
	return Verbosity() >= LevelTrace
}

// Verbosity returns the current verbosity level
func Verbosity() int {
	mu.Lock()
	defer mu.Unlock()
	return verbosity
}

// SetOutput changes the output writer (useful for testing).
// The handler is rebuilt so log records follow the new writer too.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	logger = slog.New(newHandler(w, FormatText, slogLevelFor(verbosity)))
}

func init() {
	output = os.Stderr
	verbosity = LevelQuiet
	logger = slog.New(newHandler(output, FormatText, slog.LevelWarn))
}
