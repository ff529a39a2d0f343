// Package logging provides config-driven categorized file-based logging
// for gitsplit. Logs are written to .gitsplit/logs/ with one file per
// category. When debug mode is off (the default), logging is a no-op so
// production runs leave no log files behind.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Category names a gitsplit subsystem with its own log file.
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, config loading
	CategorySession Category = "session" // Session lifecycle, persistence
	CategoryDiff    Category = "diff"    // Diff parsing and computation
	CategoryPatch   Category = "patch"   // Patch synthesis and application
	CategoryGit     Category = "git"     // Git process invocations
	CategoryOracle  Category = "oracle"  // Intent Oracle requests/responses
	CategoryVerify  Category = "verify"  // Hash verification, classification
	CategoryEngine  Category = "engine"  // Phase orchestration, backtracking
	CategoryStore   Category = "store"   // Session store operations
)

// Log levels, in ascending severity.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// loggingConfig mirrors config.LoggingConfig to avoid a circular import;
// the logging section is read straight out of the workspace config file.
type loggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

type configFile struct {
	Logging loggingConfig `yaml:"logging"`
}

// Logger writes to one category's log file.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex

	logsDir   string
	workspace string

	cfg      loggingConfig
	cfgMu    sync.RWMutex
	logLevel int
)

// Initialize sets up the logging directory and loads the logging section
// of the workspace config. Call once at startup.
func Initialize(ws string) error {
	if ws == "" {
		return fmt.Errorf("workspace path required")
	}
	workspace = ws
	logsDir = filepath.Join(workspace, ".gitsplit", "logs")

	if err := loadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "[logging] warning: could not load config: %v\n", err)
		cfg.DebugMode = false
	}

	if !cfg.DebugMode {
		return nil // silent no-op outside debug mode
	}

	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== gitsplit logging initialized ===")
	boot.Info("Workspace: %s", workspace)
	boot.Info("Log level: %s", cfg.Level)
	return nil
}

func loadConfig() error {
	cfgMu.Lock()
	defer cfgMu.Unlock()

	configPath := filepath.Join(workspace, ".gitsplit", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.DebugMode = false
			return nil
		}
		return err
	}

	var f configFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	cfg = f.Logging

	switch cfg.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	return nil
}

// IsDebugMode reports whether debug logging is enabled.
func IsDebugMode() bool {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return cfg.DebugMode
}

func categoryEnabled(c Category) bool {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	if !cfg.DebugMode {
		return false
	}
	if len(cfg.Categories) == 0 {
		return true
	}
	enabled, ok := cfg.Categories[string(c)]
	return !ok || enabled
}

// Get returns the logger for a category, creating its file on first use.
func Get(category Category) *Logger {
	loggersMu.RLock()
	l, ok := loggers[category]
	loggersMu.RUnlock()
	if ok {
		return l
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok = loggers[category]; ok {
		return l
	}

	l = &Logger{category: category}
	if categoryEnabled(category) && logsDir != "" {
		path := filepath.Join(logsDir, string(category)+".log")
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			l.file = f
			l.logger = log.New(f, "", 0)
		}
	}
	loggers[category] = l
	return l
}

// Close flushes and closes every open log file.
func Close() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			_ = l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

func (l *Logger) write(level int, tag, format string, args ...interface{}) {
	if l.logger == nil || level < logLevel {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	l.logger.Printf("[%s] %s %s", ts, tag, fmt.Sprintf(format, args...))
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(LevelDebug, "DEBUG", format, args...)
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.write(LevelInfo, "INFO ", format, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(LevelWarn, "WARN ", format, args...)
}

// Error logs at error level.
func (l *Logger) Error(format string, args ...interface{}) {
	l.write(LevelError, "ERROR", format, args...)
}

// Timer measures the duration of an operation for performance logging.
type Timer struct {
	category Category
	name     string
	start    time.Time
}

// StartTimer begins timing an operation in a category.
func StartTimer(category Category, name string) *Timer {
	return &Timer{category: category, name: name, start: time.Now()}
}

// Stop logs the elapsed time at debug level.
func (t *Timer) Stop() {
	Get(t.category).Debug("%s took %v", t.name, time.Since(t.start))
}
