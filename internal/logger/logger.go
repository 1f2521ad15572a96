package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level represents a logging level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// String returns the string representation of the log level
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel parses a string into a Level. Unknown values map to INFO.
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return DEBUG
	case "warn", "WARN", "warning", "WARNING":
		return WARN
	case "error", "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// sink is shared by a logger and every logger derived from it
type sink struct {
	mu     sync.Mutex
	level  Level
	output io.Writer
}

// Logger writes leveled, component-tagged lines
type Logger struct {
	sink      *sink
	component string
	fields    string
}

// Config holds logger configuration
type Config struct {
	Level     string `yaml:"level"`
	Component string `yaml:"-"`
}

var (
	defaultLogger = New(&Config{Level: "info", Component: "haven"})
	defaultMu     sync.RWMutex
)

// New creates a new logger writing to stderr
func New(cfg *Config) *Logger {
	component := cfg.Component
	if component == "" {
		component = "haven"
	}

	return &Logger{
		sink:      &sink{level: ParseLevel(cfg.Level), output: os.Stderr},
		component: component,
	}
}

// OpenFile points the logger at an append-only file, creating parent
// directories as needed. The returned closer releases the file.
func (l *Logger) OpenFile(path string) (io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l.SetOutput(f)
	return f, nil
}

// SetOutput sets the output writer
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.output = w
}

// SetLevel sets the minimum logging level
func (l *Logger) SetLevel(level Level) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() Level {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return l.sink.level
}

// WithComponent returns a logger sharing this one's output under another component name
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{sink: l.sink, component: component, fields: l.fields}
}

// With returns a logger that appends key=value to every line
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{
		sink:      l.sink,
		component: l.component,
		fields:    fmt.Sprintf("%s %s=%v", l.fields, key, value),
	}
}

func (l *Logger) log(level Level, format string, args ...any) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if level < l.sink.level {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("%s %s [%s] %s%s\n", timestamp, level, l.component, msg, l.fields)
	l.sink.output.Write([]byte(line))
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...any) { l.log(DEBUG, format, args...) }

// Info logs an info message
func (l *Logger) Info(format string, args ...any) { l.log(INFO, format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...any) { l.log(WARN, format, args...) }

// Error logs an error message
func (l *Logger) Error(format string, args ...any) { l.log(ERROR, format, args...) }

// SetDefaultLogger sets the package-level default logger
func SetDefaultLogger(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// GetDefaultLogger returns the package-level default logger
func GetDefaultLogger() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// Debug logs a debug message using the default logger
func Debug(format string, args ...any) { GetDefaultLogger().Debug(format, args...) }

// Info logs an info message using the default logger
func Info(format string, args ...any) { GetDefaultLogger().Info(format, args...) }

// Warn logs a warning message using the default logger
func Warn(format string, args ...any) { GetDefaultLogger().Warn(format, args...) }

// Error logs an error message using the default logger
func Error(format string, args ...any) { GetDefaultLogger().Error(format, args...) }
