package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents a log severity level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zap() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Field is a structured key-value pair attached to a log entry.
type Field = zap.Field

// String creates a string field
func String(key, value string) Field { return zap.String(key, value) }

// Int creates an integer field
func Int(key string, value int) Field { return zap.Int(key, value) }

// Int64 creates an int64 field
func Int64(key string, value int64) Field { return zap.Int64(key, value) }

// Float64 creates a float64 field
func Float64(key string, value float64) Field { return zap.Float64(key, value) }

// Duration creates a duration field
func Duration(key string, value time.Duration) Field { return zap.Duration(key, value) }

// Bool creates a boolean field
func Bool(key string, value bool) Field { return zap.Bool(key, value) }

// Strings creates a string slice field
func Strings(key string, value []string) Field { return zap.Strings(key, value) }

// Logger handles structured logging
type Logger interface {
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	Debug(msg string, fields ...Field)
	With(fields ...Field) Logger
	Close() error
}

// Keys written by the JSON encoder. The status command reads them back.
const (
	KeyTime      = "ts"
	KeyLevel     = "level"
	KeyMessage   = "msg"
	KeyComponent = "component"
	KeyError     = "error"
)

// Config configures the logger
type Config struct {
	// LogDir is the directory where log files are stored (default: ~/.nota/logs)
	LogDir string
	// Prefix is the log file prefix (e.g., "voice" produces voice-YYYY-MM-DD.log)
	Prefix string
	// RetentionDays is the number of days to retain old log files (default: 30)
	RetentionDays int
	// Component names the subsystem on every entry (e.g., "watcher")
	Component string
	// MinLevel is the minimum log level to write (default: LevelInfo)
	MinLevel Level
	// Stderr also writes human-readable entries to stderr (foreground runs)
	Stderr bool
	// minLevelSet tracks whether MinLevel was explicitly configured
	minLevelSet bool
}

// WithMinLevel returns a copy of Config with the specified minimum log level
func (c Config) WithMinLevel(level Level) Config {
	c.MinLevel = level
	c.minLevelSet = true
	return c
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	homeDir, _ := os.UserHomeDir()
	return Config{
		LogDir:        filepath.Join(homeDir, ".nota", "logs"),
		Prefix:        "voice",
		RetentionDays: 30,
		MinLevel:      LevelInfo,
	}
}

// FileLogger implements Logger on top of zap, writing JSON lines to a file
// that rotates daily.
type FileLogger struct {
	config Config
	sink   *dailyFile
	base   *zap.Logger
	z      *zap.Logger
}

// New creates a new FileLogger with the given configuration
func New(config Config) (*FileLogger, error) {
	if config.LogDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		config.LogDir = filepath.Join(homeDir, ".nota", "logs")
	}
	if config.Prefix == "" {
		config.Prefix = "voice"
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = 30
	}
	if !config.minLevelSet {
		config.MinLevel = LevelInfo
	}

	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	sink := &dailyFile{dir: config.LogDir, prefix: config.Prefix}
	if err := sink.open(); err != nil {
		return nil, err
	}

	level := config.MinLevel.zap()
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), sink, level)
	if config.Stderr {
		console := encoderConfig()
		console.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core = zapcore.NewTee(core, zapcore.NewCore(zapcore.NewConsoleEncoder(console), zapcore.Lock(os.Stderr), level))
	}

	base := zap.New(core)
	logger := &FileLogger{config: config, sink: sink, base: base, z: base}
	if config.Component != "" {
		logger.z = base.Named(config.Component)
	}

	if err := logger.cleanOldLogs(); err != nil {
		// Log cleanup errors but don't fail initialization
		logger.Error("failed to clean old logs", err)
	}

	return logger, nil
}

// FromZap wraps an existing zap logger. Close only syncs it.
func FromZap(z *zap.Logger) *FileLogger {
	return &FileLogger{base: z, z: z}
}

// Nop returns a logger that discards everything.
func Nop() *FileLogger {
	return FromZap(zap.NewNop())
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        KeyTime,
		LevelKey:       KeyLevel,
		NameKey:        KeyComponent,
		MessageKey:     KeyMessage,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     utcTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

func utcTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format(time.RFC3339))
}

// Info logs an informational message
func (l *FileLogger) Info(msg string, fields ...Field) {
	l.z.Info(msg, fields...)
}

// Warn logs a warning
func (l *FileLogger) Warn(msg string, fields ...Field) {
	l.z.Warn(msg, fields...)
}

// Error logs an error message
func (l *FileLogger) Error(msg string, err error, fields ...Field) {
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	l.z.Error(msg, fields...)
}

// Debug logs a debug message
func (l *FileLogger) Debug(msg string, fields ...Field) {
	l.z.Debug(msg, fields...)
}

// With returns a logger that adds fields to every entry.
func (l *FileLogger) With(fields ...Field) Logger {
	child := *l
	child.z = l.z.With(fields...)
	return &child
}

// WithComponent returns a new logger with the specified component name,
// sharing the same output file.
func (l *FileLogger) WithComponent(component string) *FileLogger {
	child := *l
	child.config.Component = component
	child.z = l.base.Named(component)
	return &child
}

// Zap exposes the underlying zap logger.
func (l *FileLogger) Zap() *zap.Logger {
	return l.z
}

// Close flushes buffered entries and closes the log file.
func (l *FileLogger) Close() error {
	_ = l.z.Sync()
	if l.sink != nil {
		return l.sink.Close()
	}
	return nil
}

func (l *FileLogger) cleanOldLogs() error {
	entries, err := os.ReadDir(l.config.LogDir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	prefix := l.config.Prefix + "-"
	cutoff := time.Now().UTC().AddDate(0, 0, -l.config.RetentionDays)

	var toDelete []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".log") {
			continue
		}

		// Extract date from filename: prefix-YYYY-MM-DD.log
		dateStr := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".log")

		logDate, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}

		if logDate.Before(cutoff) {
			toDelete = append(toDelete, filepath.Join(l.config.LogDir, name))
		}
	}

	sort.Strings(toDelete)

	for _, path := range toDelete {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove old log file %s: %w", path, err)
		}
	}

	return nil
}

// LogPath returns the path to the current log file
func (l *FileLogger) LogPath() string {
	if l.sink == nil {
		return ""
	}
	return l.sink.Path()
}

// FilePath returns the log file path for a given day.
func FilePath(dir, prefix string, day time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.log", prefix, day.UTC().Format("2006-01-02")))
}

// dailyFile is a zapcore.WriteSyncer that switches to a new file when the
// UTC date changes.
type dailyFile struct {
	dir    string
	prefix string

	mu   sync.Mutex
	file *os.File
	date string
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.rotateIfNeeded(); err != nil {
		return 0, err
	}
	return d.file.Write(p)
}

func (d *dailyFile) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}
	return d.file.Sync()
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

func (d *dailyFile) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file != nil {
		return d.file.Name()
	}
	return FilePath(d.dir, d.prefix, time.Now())
}

func (d *dailyFile) open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rotateIfNeeded()
}

func (d *dailyFile) rotateIfNeeded() error {
	today := time.Now().UTC().Format("2006-01-02")

	if d.date == today && d.file != nil {
		return nil
	}

	if d.file != nil {
		d.file.Close()
		d.file = nil
	}

	path := FilePath(d.dir, d.prefix, time.Now())
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	d.file = file
	d.date = today
	return nil
}
