// Package logger provides process-wide logging for Sibila, backed by zap.
//
// The printf-style helpers (Debug, Info, Warn, Error, Section) keep call
// sites short in services; L returns the underlying *zap.Logger for
// adapters that log structured fields. Debug output is only emitted when
// verbose mode is enabled via the --verbose flag.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Format selects the log encoding.
type Format string

// Supported formats.
const (
	// FormatAuto uses console output on a terminal and JSON otherwise.
	FormatAuto Format = "auto"

	// FormatConsole is human readable.
	FormatConsole Format = "console"

	// FormatJSON is one JSON object per line.
	FormatJSON Format = "json"
)

var (
	mu      sync.RWMutex
	verbose bool
	level   = zapcore.WarnLevel
	format  = FormatAuto
	output  io.Writer = os.Stderr
	base    = build()
)

// SetVerbose enables or disables debug logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	base = build()
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetLevel sets the minimum level emitted when not verbose.
// Long-running commands (serve, watch) lower it to info.
func SetLevel(l zapcore.Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
	base = build()
}

// SetFormat selects the encoding.
func SetFormat(f Format) {
	mu.Lock()
	defer mu.Unlock()
	format = f
	base = build()
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	base = build()
}

// Replace installs a prebuilt logger, e.g. one backed by zaptest/observer.
func Replace(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
}

// Reset restores the defaults.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	verbose = false
	level = zapcore.WarnLevel
	format = FormatAuto
	output = os.Stderr
	base = build()
}

// L returns the current structured logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Named returns a child logger for a component.
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync() //nolint:errcheck // stderr sync fails on some platforms
}

// Debug logs a formatted message if verbose mode is enabled.
func Debug(template string, args ...any) {
	L().Debug(fmt.Sprintf(template, args...))
}

// Section logs a section header if verbose mode is enabled.
func Section(name string) {
	L().Debug("=== " + name + " ===")
}

// Info logs a formatted informational message.
func Info(template string, args ...any) {
	L().Info(fmt.Sprintf(template, args...))
}

// Warn logs a formatted warning.
func Warn(template string, args ...any) {
	L().Warn(fmt.Sprintf(template, args...))
}

// Error logs a formatted error.
func Error(template string, args ...any) {
	L().Error(fmt.Sprintf(template, args...))
}

// build creates the zap logger from the current settings (caller holds lock).
func build() *zap.Logger {
	minLevel := level
	if verbose {
		minLevel = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if useConsole() {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(output), zap.NewAtomicLevelAt(minLevel))
	return zap.New(core)
}

func useConsole() bool {
	switch format {
	case FormatConsole:
		return true
	case FormatJSON:
		return false
	}
	f, ok := output.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
