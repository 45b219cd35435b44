package core

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

var loggerInstance Logger = *NewDevelopmentLogger() // default to development logger

// SetLogger sets the global logger instance
func SetLogger(logger Logger) {
	loggerInstance = logger
}

// GetLogger retrieves the global logger instance
func GetLogger() *Logger {
	return &loggerInstance
}

// LogHandlerFunc receives every log line after attrs have been merged.
type LogHandlerFunc func(level string, msg string, attrs map[string]interface{})

type Logger struct {
	handlerFunc LogHandlerFunc
	attrs       map[string]interface{}
}

func NewLogger(handler LogHandlerFunc) *Logger {
	return &Logger{
		handlerFunc: handler,
		attrs:       make(map[string]interface{}),
	}
}

// NewDevelopmentLogger creates a new development logger with pretty console output
func NewDevelopmentLogger() *Logger {
	return NewLogger(consoleHandler)
}

// NewNopLogger discards everything. Handy in tests that don't assert on logs.
func NewNopLogger() *Logger {
	return NewLogger(func(string, string, map[string]interface{}) {})
}

func consoleHandler(level string, msg string, attrs map[string]interface{}) {
	timestamp := time.Now().Format(time.RFC3339)
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", timestamp, level, msg)
	if len(attrs) > 0 {
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, attrs[k])
		}
	}
	b.WriteString("\n")

	switch level {
	case "FATAL":
		fmt.Fprint(os.Stderr, b.String())
		os.Exit(1)
	case "ERROR", "WARN":
		fmt.Fprint(os.Stderr, b.String())
	default:
		fmt.Print(b.String())
	}
}

// Handler exposes the underlying sink so other loggers can tee into it.
func (l *Logger) Handler() LogHandlerFunc {
	return l.handlerFunc
}

// log treats args as slog-style key-value pairs. A trailing key without a
// value is recorded under "!BADKEY" instead of being dropped.
func (l *Logger) log(level string, msg string, args ...interface{}) {
	if l.handlerFunc == nil {
		return
	}
	if len(args) == 0 {
		l.handlerFunc(level, msg, l.attrs)
		return
	}
	attrs := make(map[string]interface{}, len(l.attrs)+len(args)/2)
	for k, v := range l.attrs {
		attrs[k] = v
	}
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			attrs["!BADKEY"] = args[i]
			continue
		}
		attrs[key] = args[i+1]
	}
	l.handlerFunc(level, msg, attrs)
}

func (l *Logger) logf(level string, format string, args ...interface{}) {
	if l.handlerFunc == nil {
		return
	}
	l.handlerFunc(level, fmt.Sprintf(format, args...), l.attrs)
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log("DEBUG", msg, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logf("DEBUG", format, args...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.log("INFO", msg, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.logf("INFO", format, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log("WARN", msg, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logf("WARN", format, args...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.log("ERROR", msg, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logf("ERROR", format, args...)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("FATAL", msg, args...)
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logf("FATAL", format, args...)
}

func (l *Logger) With(attrs map[string]interface{}) *Logger {
	combinedAttrs := make(map[string]interface{}, len(l.attrs)+len(attrs))
	for k, v := range l.attrs {
		combinedAttrs[k] = v
	}
	for k, v := range attrs {
		combinedAttrs[k] = v
	}
	return &Logger{
		handlerFunc: l.handlerFunc,
		attrs:       combinedAttrs,
	}
}

// Sync is a no-op for fmt-based logger
func (l *Logger) Sync() error {
	return nil
}
