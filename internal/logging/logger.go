// Package logging provides config-driven categorized logging for schedforge.
// Each pipeline stage logs under its own category; categories can be toggled
// individually. Logging is controlled by debug_mode - when false, every
// logger is a no-op.
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
	CategoryBoot      Category = "boot"      // Startup, config
	CategoryPipeline  Category = "pipeline"  // Stage sequencing
	CategoryTriggers  Category = "triggers"  // Trigger compounding
	CategoryAllocator Category = "allocator" // Slot and content selection
	CategoryTiming    Category = "timing"    // Jitter, dead zone, collisions
	CategoryPricing   Category = "pricing"   // Price stack
	CategoryFollowup  Category = "followup"  // Followup generation
	CategoryValidator Category = "validator" // Hard gates, scoring
	CategoryStore     Category = "store"     // Certificate persistence
	CategoryBatch     Category = "batch"     // Multi-creator runs
	CategoryAudit     Category = "audit"     // Audit trail
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	DebugMode  bool
	Level      string // debug, info, warn, error
	Format     string // json, text
	File       string // empty = stderr
	Categories map[string]bool
}

// Logger is a category-scoped sugared zap logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	base    = zap.NewNop()
	opts    Options
	loggers = make(map[Category]*Logger)
)

// Initialize builds the shared zap logger from opts. With DebugMode off the
// package stays silent.
func Initialize(o Options) error {
	if !o.DebugMode {
		Use(zap.NewNop(), o)
		return nil
	}

	level, err := ParseLevel(o.Level)
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Sampling = nil
	if strings.EqualFold(o.Format, "text") {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if o.File != "" {
		cfg.OutputPaths = []string{o.File}
	} else {
		cfg.OutputPaths = []string{"stderr"}
	}

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	Use(l, o)

	boot := Get(CategoryBoot)
	boot.Info("logging initialized (level=%s format=%s)", level, cfgFormat(o))
	if len(o.Categories) > 0 {
		enabled := 0
		for _, on := range o.Categories {
			if on {
				enabled++
			}
		}
		boot.Debug("enabled categories: %d/%d", enabled, len(o.Categories))
	}
	return nil
}

// Use installs l as the shared logger. Tests pass an observer core here.
func Use(l *zap.Logger, o Options) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	base = l
	opts = o
	loggers = make(map[Category]*Logger)
}

// ParseLevel maps a config level string to a zap level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
}

func cfgFormat(o Options) string {
	if o.Format == "" {
		return "json"
	}
	return o.Format
}

// IsDebugMode returns whether logging is enabled at all.
func IsDebugMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return opts.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabled(category)
}

func categoryEnabled(category Category) bool {
	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode or the category is disabled.
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

	var l *Logger
	if categoryEnabled(category) {
		l = &Logger{category: category, sugar: base.Named(string(category)).Sugar()}
	} else {
		l = &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// StructuredLog writes a message with key-value fields at the given level.
func (l *Logger) StructuredLog(level string, msg string, fields map[string]interface{}) {
	kv := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	switch strings.ToLower(level) {
	case "debug":
		l.sugar.Debugw(msg, kv...)
	case "warn", "warning":
		l.sugar.Warnw(msg, kv...)
	case "error":
		l.sugar.Errorw(msg, kv...)
	default:
		l.sugar.Infow(msg, kv...)
	}
}

// With returns a child logger carrying key-value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Category returns the logger's category.
func (l *Logger) Category() Category {
	return l.category
}

// Sync flushes buffered entries (call at shutdown).
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// PricingDebug logs debug to the pricing category
func PricingDebug(format string, args ...interface{}) {
	Get(CategoryPricing).Debug(format, args...)
}

// Validator logs to the validator category
func Validator(format string, args ...interface{}) {
	Get(CategoryValidator).Info(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}

// Batch logs to the batch category
func Batch(format string, args ...interface{}) {
	Get(CategoryBatch).Info(format, args...)
}
