// Package logger is the structured, leveled logger shared by the server,
// the CLI and the engine. Output goes to a rotating file, stderr, or both,
// as text or JSON lines
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents log severity
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

// ParseLevel converts a string to a Level, defaulting to INFO
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// F is a shorthand for creating a Field
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Err is a shorthand for F("error", err)
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds logger configuration
type Config struct {
	Level      Level
	Format     string // text or json
	FilePath   string // empty disables file output
	MaxSize    int64  // bytes before rotation
	MaxAge     int    // days before rotation
	MaxBackups int
	Console    bool      // also write to stderr
	Output     io.Writer // extra destination, used by tests
}

// DefaultConfig returns default logger configuration
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	logPath := ""
	if home != "" {
		logPath = filepath.Join(home, ".clientpulse", "logs", "clientpulse.log")
	}

	return Config{
		Level:      INFO,
		Format:     FormatText,
		FilePath:   logPath,
		MaxSize:    10 * 1024 * 1024, // 10MB
		MaxAge:     7,
		MaxBackups: 5,
		Console:    true,
	}
}

// sink is the destination shared by a logger and everything derived from it
type sink struct {
	mu      sync.Mutex
	config  Config
	file    *os.File
	writers []io.Writer
}

// Logger writes leveled entries with preset fields
type Logger struct {
	sink   *sink
	fields []Field
}

var (
	globalLogger *Logger
	once         sync.Once
)

// Init initializes the global logger once
func Init(config Config) error {
	var err error
	once.Do(func() {
		globalLogger, err = New(config)
	})
	return err
}

// New creates a new logger instance
func New(config Config) (*Logger, error) {
	s := &sink{config: config}

	if config.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		if err := s.openFile(); err != nil {
			return nil, err
		}
		if err := s.rotateIfNeeded(); err != nil {
			return nil, err
		}
	} else {
		s.resetWriters()
	}

	return &Logger{sink: s}, nil
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{sink: &sink{config: Config{Level: ERROR + 1}}}
}

func (s *sink) openFile() error {
	file, err := os.OpenFile(s.config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	s.file = file
	s.resetWriters()
	return nil
}

func (s *sink) resetWriters() {
	s.writers = s.writers[:0]
	if s.file != nil {
		s.writers = append(s.writers, s.file)
	}
	if s.config.Console {
		s.writers = append(s.writers, os.Stderr)
	}
	if s.config.Output != nil {
		s.writers = append(s.writers, s.config.Output)
	}
}

// rotateIfNeeded must be called with mu held or before the sink is shared
func (s *sink) rotateIfNeeded() error {
	if s.file == nil {
		return nil
	}

	info, err := s.file.Stat()
	if err != nil {
		return err
	}

	tooBig := s.config.MaxSize > 0 && info.Size() >= s.config.MaxSize
	tooOld := s.config.MaxAge > 0 && info.Size() > 0 &&
		time.Since(info.ModTime()) > time.Duration(s.config.MaxAge)*24*time.Hour
	if !tooBig && !tooOld {
		return nil
	}
	return s.rotate()
}

func (s *sink) rotate() error {
	s.file.Close()
	s.file = nil

	for i := s.config.MaxBackups - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", s.config.FilePath, i), fmt.Sprintf("%s.%d", s.config.FilePath, i+1))
	}
	if s.config.MaxBackups > 0 {
		if err := os.Rename(s.config.FilePath, s.config.FilePath+".1"); err != nil && !os.IsNotExist(err) {
			return err
		}
	} else {
		os.Remove(s.config.FilePath)
	}

	return s.openFile()
}

func (s *sink) write(level Level, caller, msg string, fields []Field) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rotateIfNeeded()

	now := time.Now()
	var entry []byte
	if s.config.Format == FormatJSON {
		entry = jsonEntry(now, level, caller, msg, fields)
	} else {
		entry = textEntry(now, level, caller, msg, fields)
	}

	for _, w := range s.writers {
		w.Write(entry)
	}
}

func textEntry(now time.Time, level Level, caller, msg string, fields []Field) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s: %s", now.Format("2006-01-02 15:04:05.000"), level, caller, msg)
	if len(fields) > 0 {
		b.WriteString(" |")
		for _, f := range fields {
			fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
		}
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

func jsonEntry(now time.Time, level Level, caller, msg string, fields []Field) []byte {
	m := make(map[string]interface{}, len(fields)+4)
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	m["time"] = now.UTC().Format(time.RFC3339Nano)
	m["level"] = level.String()
	m["caller"] = caller
	m["msg"] = msg

	data, err := json.Marshal(m)
	if err != nil {
		data, _ = json.Marshal(map[string]string{
			"time":  m["time"].(string),
			"level": level.String(),
			"msg":   msg,
			"error": "unencodable fields: " + err.Error(),
		})
	}
	return append(data, '\n')
}

func (l *Logger) log(level Level, msg string, fields []Field) {
	if l == nil || level < l.sink.config.Level {
		return
	}

	_, file, line, ok := runtime.Caller(3)
	caller := "???"
	if ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	all := make([]Field, 0, len(l.fields)+len(fields))
	all = append(all, l.fields...)
	all = append(all, fields...)
	l.sink.write(level, caller, msg, all)
}

// WithFields returns a child logger that adds fields to every entry
func (l *Logger) WithFields(fields ...Field) *Logger {
	if l == nil {
		return nil
	}
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &Logger{sink: l.sink, fields: merged}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.entry(DEBUG, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.entry(INFO, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.entry(WARN, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.entry(ERROR, msg, fields) }

// entry keeps the caller depth identical for methods and globals
func (l *Logger) entry(level Level, msg string, fields []Field) {
	l.log(level, msg, fields)
}

// Close closes the log file, if any
func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if l.sink.file != nil {
		err := l.sink.file.Close()
		l.sink.file = nil
		l.sink.resetWriters()
		return err
	}
	return nil
}

// Global logger functions

// Default returns the global logger, or a Nop logger before Init
func Default() *Logger {
	if globalLogger != nil {
		return globalLogger
	}
	return Nop()
}

func Debug(msg string, fields ...Field) { globalLogger.entry(DEBUG, msg, fields) }
func Info(msg string, fields ...Field)  { globalLogger.entry(INFO, msg, fields) }
func Warn(msg string, fields ...Field)  { globalLogger.entry(WARN, msg, fields) }
func Error(msg string, fields ...Field) { globalLogger.entry(ERROR, msg, fields) }

// WithFields creates a child of the global logger
func WithFields(fields ...Field) *Logger {
	return Default().WithFields(fields...)
}

// Close closes the global logger
func Close() error {
	if globalLogger != nil {
		return globalLogger.Close()
	}
	return nil
}
