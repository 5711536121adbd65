// Package logging provides categorized, leveled logging for taskmap.
// Every category shares one zap logger; until Initialize (or SetBase) is
// called all loggers are no-ops, so library users pay nothing for logging
// they never asked for.
package logging

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot        Category = "boot"        // Process startup, CLI
	CategoryConfig      Category = "config"      // Validation, merges, engine tuning
	CategorySimulation  Category = "simulation"  // Lifecycle, ticks, cooling
	CategoryForce       Category = "force"       // Force evaluation
	CategorySpacing     Category = "spacing"     // Smart spacing, clusters
	CategoryPerformance Category = "performance" // Governor decisions, memory
	CategoryDiagnostics Category = "diagnostics" // Collision tests and reports
	CategoryViewport    Category = "viewport"    // Viewport math, camera transitions
	CategoryTracker     Category = "tracker"     // Active task changes
	CategoryEngine      Category = "engine"      // Facade wiring
)

// Options configures the shared zap logger.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string `yaml:"level" json:"level"`
	// JSON selects the JSON encoder instead of the console encoder.
	JSON bool `yaml:"json" json:"json"`
	// Categories filters output per category. Nil or missing keys are enabled.
	Categories map[string]bool `yaml:"categories,omitempty" json:"categories,omitempty"`
	// OutputPaths defaults to stderr.
	OutputPaths []string `yaml:"output_paths,omitempty" json:"output_paths,omitempty"`
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	base       = zap.NewNop()
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
)

// ParseLevel maps a level name onto a zap level; unknown names map to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Initialize builds the shared logger from opts.
func Initialize(opts Options) error {
	cfg := zap.NewProductionConfig()
	if !opts.JSON {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(opts.Level))
	if len(opts.OutputPaths) > 0 {
		cfg.OutputPaths = opts.OutputPaths
	}
	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	install(l, opts.Categories)
	Get(CategoryBoot).Debug("logging initialized level=%s json=%v", cfg.Level.String(), opts.JSON)
	return nil
}

// SetBase installs an already built zap logger (CLI hosts, tests).
func SetBase(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	install(l, nil)
}

// SetCategories replaces the category filter.
func SetCategories(c map[string]bool) {
	mu.Lock()
	categories = c
	loggers = make(map[Category]*Logger)
	mu.Unlock()
}

func install(l *zap.Logger, cats map[string]bool) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	categories = cats
	loggers = make(map[Category]*Logger)
}

// Base returns the shared zap logger.
func Base() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabled(category)
}

func categoryEnabled(category Category) bool {
	if categories == nil {
		return true
	}
	enabled, exists := categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Disabled categories get a no-op logger.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	z := base
	if !categoryEnabled(category) {
		z = zap.NewNop()
	}
	l := &Logger{
		category: category,
		sugar:    z.Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

// Category returns the logger's category.
func (l *Logger) Category() Category {
	return l.category
}

// With returns a child logger carrying structured key/value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Sync flushes buffered output of the shared logger.
func Sync() error {
	return Base().Sync()
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

// Simulation logs to the simulation category
func Simulation(format string, args ...interface{}) {
	Get(CategorySimulation).Info(format, args...)
}

// SimulationDebug logs debug to the simulation category
func SimulationDebug(format string, args ...interface{}) {
	Get(CategorySimulation).Debug(format, args...)
}

// Performance logs to the performance category
func Performance(format string, args ...interface{}) {
	Get(CategoryPerformance).Info(format, args...)
}

// PerformanceDebug logs debug to the performance category
func PerformanceDebug(format string, args ...interface{}) {
	Get(CategoryPerformance).Debug(format, args...)
}

// Viewport logs to the viewport category
func Viewport(format string, args ...interface{}) {
	Get(CategoryViewport).Info(format, args...)
}

// ViewportDebug logs debug to the viewport category
func ViewportDebug(format string, args ...interface{}) {
	Get(CategoryViewport).Debug(format, args...)
}

// Tracker logs to the tracker category
func Tracker(format string, args ...interface{}) {
	Get(CategoryTracker).Info(format, args...)
}

// Engine logs to the engine category
func Engine(format string, args ...interface{}) {
	Get(CategoryEngine).Info(format, args...)
}

// EngineDebug logs debug to the engine category
func EngineDebug(format string, args ...interface{}) {
	Get(CategoryEngine).Debug(format, args...)
}
