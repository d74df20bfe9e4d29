// Package logging provides the leveled logger injected into the agent, scheduler and API.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// Level represents log level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) Color() string {
	switch l {
	case DEBUG:
		return "\033[36m" // Cyan
	case INFO:
		return "\033[32m" // Green
	case WARN:
		return "\033[33m" // Yellow
	case ERROR:
		return "\033[31m" // Red
	default:
		return "\033[0m"
	}
}

// ParseLevel maps a config string to a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", s)
	}
}

// Options configures a Logger
type Options struct {
	Level  Level
	Output io.Writer // default: os.Stdout
	Color  bool
}

// Logger is a structured logger. Child loggers share the parent's writer lock.
type Logger struct {
	level  Level
	output io.Writer
	color  bool
	mu     *sync.Mutex
	fields map[string]interface{}
}

// New creates a logger
func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Logger{
		level:  opts.Level,
		output: opts.Output,
		color:  opts.Color,
		mu:     &sync.Mutex{},
		fields: make(map[string]interface{}),
	}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return New(Options{Level: ERROR + 1, Output: io.Discard})
}

// Open builds a logger from config values. An empty path logs to stdout
// with colors when stdout is a terminal. The returned closer releases the log file.
func Open(level, path string) (*Logger, io.Closer, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	if path == "" {
		return New(Options{
			Level:  lvl,
			Output: os.Stdout,
			Color:  term.IsTerminal(int(os.Stdout.Fd())),
		}), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return New(Options{Level: lvl, Output: f}), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Level returns the minimum level that is written
func (l *Logger) Level() Level {
	return l.level
}

// WithField adds a field to the logger
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields adds multiple fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	newLogger := &Logger{
		level:  l.level,
		output: l.output,
		color:  l.color,
		mu:     l.mu,
		fields: make(map[string]interface{}, len(l.fields)+len(fields)),
	}
	for k, v := range l.fields {
		newLogger.fields[k] = v
	}
	for k, v := range fields {
		newLogger.fields[k] = v
	}
	return newLogger
}

func (l *Logger) log(level Level, msg string, args ...interface{}) {
	if level < l.level {
		return
	}

	timestamp := time.Now().Format("15:04:05")

	formatted := msg
	if len(args) > 0 {
		formatted = fmt.Sprintf(msg, args...)
	}

	// Fields are sorted so lines are stable
	var fieldsStr string
	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var b strings.Builder
		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, l.fields[k])
		}
		fieldsStr = b.String()
	}

	tag := "[" + level.String() + "]"
	if l.color {
		tag = level.Color() + tag + "\033[0m"
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.output, "%s %s %s%s\n", timestamp, tag, formatted, fieldsStr)
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log(DEBUG, msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log(INFO, msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log(WARN, msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log(ERROR, msg, args...) }
