package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"gopkg.in/natefinch/lumberjack.v2"
)

// sessionLoggerKey is the context key for storing a per-session logger.
type sessionLoggerKey struct{}

// ContextWithSessionLogger returns a new context carrying the session logger.
func ContextWithSessionLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, sessionLoggerKey{}, logger)
}

// SessionLoggerFromContext extracts the session logger from the context, or nil.
func SessionLoggerFromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(sessionLoggerKey{}).(*Logger); ok {
		return l
	}
	return nil
}

// LogEntry is a single JSON log line.
type LogEntry struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Message   string                 `json:"msg"`
	Attrs     map[string]interface{} `json:"attrs,omitempty"`
}

// LogWriter abstracts the destination for structured log entries.
type LogWriter interface {
	Write(level, msg string, attrs map[string]interface{})
	Close()
}

// JSONLineWriter writes one LogEntry per line to an underlying writer.
type JSONLineWriter struct {
	mu  sync.Mutex
	out io.WriteCloser
}

// NewJSONLineWriter wraps out. The writer owns out and closes it on Close.
func NewJSONLineWriter(out io.WriteCloser) *JSONLineWriter {
	return &JSONLineWriter{out: out}
}

// RotationConfig controls the lumberjack rotation of file sinks.
type RotationConfig struct {
	MaxSizeMB  int  `json:"max_size_mb"`
	MaxBackups int  `json:"max_backups"`
	MaxAgeDays int  `json:"max_age_days"`
	Compress   bool `json:"compress"`
}

// DefaultRotationConfig mirrors the sizes used for the chat log files.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Compress:   true,
	}
}

// NewRotatingFile opens a lumberjack-backed file, creating its directory.
func NewRotatingFile(path string, cfg RotationConfig) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("storage logger: mkdir %q: %w", filepath.Dir(path), err)
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}, nil
}

// NewRotatingLogWriter returns a JSON-lines writer over a rotated log file.
func NewRotatingLogWriter(path string, cfg RotationConfig) (*JSONLineWriter, error) {
	f, err := NewRotatingFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return NewJSONLineWriter(f), nil
}

// Write appends a structured log line.
func (w *JSONLineWriter) Write(level, msg string, attrs map[string]interface{}) {
	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Attrs:     stringifyErrors(attrs),
	}
	data, err := sonic.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.out != nil {
		w.out.Write(data)
	}
}

// Close flushes and closes the underlying writer.
func (w *JSONLineWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.out != nil {
		w.out.Close()
		w.out = nil
	}
}

// error values marshal to {} otherwise.
func stringifyErrors(attrs map[string]interface{}) map[string]interface{} {
	if len(attrs) == 0 {
		return attrs
	}
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		if err, ok := v.(error); ok {
			out[k] = err.Error()
			continue
		}
		out[k] = v
	}
	return out
}

// NewTeeLogger creates a Logger that sends output to both the base logger
// and the provided LogWriter. All child loggers created via With()
// inherit this behaviour automatically.
func NewTeeLogger(baseLogger *Logger, writer LogWriter) *Logger {
	base := baseLogger.Handler()
	return NewLogger(func(level string, msg string, attrs map[string]interface{}) {
		if base != nil {
			base(level, msg, attrs)
		}
		writer.Write(level, msg, attrs)
	})
}
