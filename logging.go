package runbeam

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
)

// Logger is a minimal printf-style logging interface, compatible with
// the standard library *log.Logger.
type Logger interface {
	// Printf logs a formatted message.
	Printf(format string, v ...any)
}

// StructuredLogger provides leveled, structured logging for the SDK.
// It is compatible with log/slog; use NewSlogAdapter to wrap an
// *slog.Logger or WrapPrintfLogger to wrap a printf-style logger.
type StructuredLogger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, args ...any)
	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, args ...any)
	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, args ...any)
	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, args ...any)
}

// slogAdapter adapts *slog.Logger to StructuredLogger.
type slogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter wraps an *slog.Logger as a StructuredLogger.
//
//	client, _ := runbeam.New(apiKey,
//	    runbeam.WithStructuredLogger(runbeam.NewSlogAdapter(slog.Default())),
//	)
func NewSlogAdapter(l *slog.Logger) StructuredLogger {
	return &slogAdapter{logger: l}
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.logger.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }

var _ StructuredLogger = (*slogAdapter)(nil)

// printfLoggerWrapper adapts a printf-style Logger to StructuredLogger.
type printfLoggerWrapper struct {
	logger Logger
}

// WrapPrintfLogger wraps a printf-style Logger (like *log.Logger) as a
// StructuredLogger. Every message is logged through Printf with its
// level and key-value pairs formatted inline.
func WrapPrintfLogger(l Logger) StructuredLogger {
	return &printfLoggerWrapper{logger: l}
}

// WrapStdLogger wraps a standard library *log.Logger as a
// StructuredLogger. Equivalent to WrapPrintfLogger(l).
func WrapStdLogger(l *log.Logger) StructuredLogger {
	return &printfLoggerWrapper{logger: l}
}

func (w *printfLoggerWrapper) Debug(msg string, args ...any) {
	w.logger.Printf("[DEBUG] %s%s", msg, formatArgs(args))
}

func (w *printfLoggerWrapper) Info(msg string, args ...any) {
	w.logger.Printf("[INFO] %s%s", msg, formatArgs(args))
}

func (w *printfLoggerWrapper) Warn(msg string, args ...any) {
	w.logger.Printf("[WARN] %s%s", msg, formatArgs(args))
}

func (w *printfLoggerWrapper) Error(msg string, args ...any) {
	w.logger.Printf("[ERROR] %s%s", msg, formatArgs(args))
}

var _ StructuredLogger = (*printfLoggerWrapper)(nil)

// formatArgs renders slog-style alternating key-value args as " k=v ...".
func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(args); i += 2 {
		b.WriteByte(' ')
		if i+1 < len(args) {
			fmt.Fprintf(&b, "%v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, "%v=?", args[i])
		}
	}
	return b.String()
}

// defaultStderrLogger is the fallback used when no logger is configured,
// so background submission failures are never silently dropped.
var defaultStderrLogger = WrapStdLogger(log.New(os.Stderr, "runbeam: ", log.LstdFlags))

// nopLogger discards everything. Used by tests and by callers that
// explicitly opt out of SDK logging.
type nopLogger struct{}

// NopLogger returns a StructuredLogger that discards all messages.
func NopLogger() StructuredLogger { return nopLogger{} }

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
