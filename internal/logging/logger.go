// Package logging provides config-driven categorized file-based logging for
// testlint. Logs are written to .testlint/logs/ with separate files per
// category. When debug mode is off, every call is a silent no-op so the
// analysis pipeline never pays for logging it did not ask for.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category, one per pipeline stage.
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, config resolution
	CategoryAdapter Category = "adapter" // Parsing, test unit extraction
	CategoryFacts   Category = "facts"   // Fact sheet extraction
	CategoryRules   Category = "rules"   // Rule evaluation
	CategoryReport  Category = "report"  // Aggregation and rendering
	CategoryEngine  Category = "engine"  // Worker pool, watch mode
)

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers    = make(map[Category]*Logger)
	loggersMu  sync.RWMutex
	logsDir    string
	debugMode  bool
	categories map[string]bool
	stateMu    sync.RWMutex
)

// Initialize sets up the logging directory. Should be called once at startup
// with the workspace root; a disabled debug mode makes this a no-op.
func Initialize(workspace string, debug bool, enabled map[string]bool) error {
	stateMu.Lock()
	debugMode = debug
	categories = enabled
	stateMu.Unlock()

	if !debug {
		return nil
	}
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	logsDir = filepath.Join(workspace, ".testlint", "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	Get(CategoryBoot).Info("=== testlint logging initialized ===")
	Get(CategoryBoot).Info("logs directory: %s", logsDir)
	return nil
}

// IsCategoryEnabled returns whether a category is enabled.
func IsCategoryEnabled(category Category) bool {
	stateMu.RLock()
	defer stateMu.RUnlock()

	if !debugMode {
		return false
	}
	if categories == nil {
		return true
	}
	enabled, ok := categories[string(category)]
	if !ok {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) || logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[DEBUG] %s", fmt.Sprintf(format, args...))
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[INFO] %s", fmt.Sprintf(format, args...))
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[WARN] %s", fmt.Sprintf(format, args...))
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] %s", fmt.Sprintf(format, args...))
}

// CloseAll closes all open log files (call at shutdown).
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Convenience functions. No-ops when the category is disabled.

func Adapter(format string, args ...interface{})      { Get(CategoryAdapter).Info(format, args...) }
func AdapterDebug(format string, args ...interface{}) { Get(CategoryAdapter).Debug(format, args...) }
func Facts(format string, args ...interface{})        { Get(CategoryFacts).Info(format, args...) }
func FactsDebug(format string, args ...interface{})   { Get(CategoryFacts).Debug(format, args...) }
func Rules(format string, args ...interface{})        { Get(CategoryRules).Info(format, args...) }
func RulesDebug(format string, args ...interface{})   { Get(CategoryRules).Debug(format, args...) }
func Engine(format string, args ...interface{})       { Get(CategoryEngine).Info(format, args...) }
func EngineDebug(format string, args ...interface{})  { Get(CategoryEngine).Debug(format, args...) }
func EngineError(format string, args ...interface{})  { Get(CategoryEngine).Error(format, args...) }
func Report(format string, args ...interface{})       { Get(CategoryReport).Info(format, args...) }
