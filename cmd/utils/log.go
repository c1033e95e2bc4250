package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	debugOnce   sync.Once
	debugFile   *os.File
	debugLogger = zap.NewNop()

	// --debug copies log lines to stderr unless the TUI owns the terminal.
	debugRequested bool
	mirrorStderr   atomic.Bool
	stderrSink     zapcore.WriteSyncer = zapcore.Lock(os.Stderr)

	// Compiled regex patterns for sanitization (compiled once at startup)
	// NOTE: Order matters! More specific patterns should come before generic ones.
	sensitivePatterns = []struct {
		pattern     *regexp.Regexp
		replacement string
	}{
		// JWT tokens (must come before generic token patterns)
		{regexp.MustCompile(`\beyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), "[REDACTED-JWT]"},
		{regexp.MustCompile(`\b(sk|pk|sess)-[a-zA-Z0-9\-_]{20,}`), "[REDACTED-KEY]"},
		{regexp.MustCompile(`\bAKIA[A-Z0-9]{16}\b`), "[REDACTED-AWS-KEY]"},
		{regexp.MustCompile(`(?i)-----BEGIN\s+(RSA\s+)?PRIVATE\s+KEY-----[\s\S]*?-----END\s+(RSA\s+)?PRIVATE\s+KEY-----`), "[REDACTED-PRIVATE-KEY]"},
		{regexp.MustCompile(`(?i)(authorization[=:\s]+['"]?)(Basic|Bearer|Digest)\s+[a-zA-Z0-9\-_\.=]+`), "${1}${2} [REDACTED]"},
		{regexp.MustCompile(`(?i)(bearer\s+)[a-zA-Z0-9\-_\.]+`), "${1}[REDACTED]"},
		{regexp.MustCompile(`(?i)(api[_-]?key[=:\s]+['"]?)[a-zA-Z0-9\-_]{16,}`), "${1}[REDACTED]"},
		{regexp.MustCompile(`(?i)(apikey[=:\s]+['"]?)[a-zA-Z0-9\-_]{16,}`), "${1}[REDACTED]"},
		{regexp.MustCompile(`(?i)(password[=:\s]+['"]?)[^\s&'"]+`), "${1}[REDACTED]"},
		{regexp.MustCompile(`(?i)(passwd[=:\s]+['"]?)[^\s&'"]+`), "${1}[REDACTED]"},
		{regexp.MustCompile(`(?i)(access[_-]?token[=:\s]+['"]?)[a-zA-Z0-9\-_\.]{16,}`), "${1}[REDACTED]"},
		{regexp.MustCompile(`(?i)(refresh[_-]?token[=:\s]+['"]?)[a-zA-Z0-9\-_\.]{16,}`), "${1}[REDACTED]"},
		{regexp.MustCompile(`(?i)(token[=:\s]+['"]?)[a-zA-Z0-9\-_\.]{16,}`), "${1}[REDACTED]"},
		{regexp.MustCompile(`(?i)(session[_-]?id[=:\s]+['"]?)[a-zA-Z0-9\-_]{16,}`), "${1}[REDACTED]"},
		{regexp.MustCompile(`(?i)(cookie[=:\s]+['"]?)[^;\n]+`), "${1}[REDACTED]"},
	}
)

// InitDebugLogger opens the debug log file through Bubble Tea's LogToFile, since
// the TUI owns the terminal, and builds a zap logger on top of it. With debug
// set, lines are also mirrored to stderr until MirrorToStderr(false). If path
// is empty, it defaults to debug.log in the effective working directory. Safe
// to call multiple times; only the first call takes effect.
func InitDebugLogger(path string, debug bool) error {
	var initErr error
	debugOnce.Do(func() {
		if path == "" {
			path = filepath.Join(GetEffectiveCWD(), "debug.log")
		}
		if debug {
			absPath, err := filepath.Abs(path)
			if err != nil {
				absPath = path
			}
			fmt.Printf("[DEBUG] Logging to: %s\n", absPath)
		}

		f, err := tea.LogToFile(path, "debug")
		if err != nil {
			initErr = err
			return
		}
		debugFile = f
		debugRequested = debug
		mirrorStderr.Store(debug)

		fileCore := zapcore.NewCore(consoleEncoder(), zapcore.AddSync(f), zapcore.DebugLevel)
		stderrCore := gatedCore{
			Core: zapcore.NewCore(consoleEncoder(), stderrSink, zapcore.DebugLevel),
			on:   &mirrorStderr,
		}
		debugLogger = zap.New(redactingCore{zapcore.NewTee(fileCore, stderrCore)})
	})
	return initErr
}

func consoleEncoder() zapcore.Encoder {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(encCfg)
}

// MirrorToStderr switches the stderr copy of the debug log. It has no effect
// unless the logger was initialised with debug set.
func MirrorToStderr(on bool) {
	mirrorStderr.Store(on && debugRequested)
}

// Logger returns the shared structured logger. It is a no-op logger until
// InitDebugLogger succeeds.
func Logger() *zap.Logger {
	return debugLogger
}

// CloseDebugLogger flushes and closes the debug log file if it was opened.
func CloseDebugLogger() {
	_ = debugLogger.Sync()
	if debugFile != nil {
		_ = debugFile.Sync()
		_ = debugFile.Close()
	}
}

// ResetDebugLoggerForTesting resets the debug logger state for testing purposes.
// WARNING: This should ONLY be called from tests!
func ResetDebugLoggerForTesting() {
	CloseDebugLogger()
	debugOnce = sync.Once{}
	debugFile = nil
	debugLogger = zap.NewNop()
	debugRequested = false
	mirrorStderr.Store(false)
}

// sanitizeLogMessage applies regex patterns to redact sensitive information from log messages.
func sanitizeLogMessage(msg string) string {
	sanitized := msg
	for _, sp := range sensitivePatterns {
		sanitized = sp.pattern.ReplaceAllString(sanitized, sp.replacement)
	}
	return sanitized
}

// LogDebug writes a sanitized debug line to the debug log file.
func LogDebug(msg string) {
	debugLogger.Debug(msg)
}

// redactingCore sanitizes entry messages and string fields before they reach
// the wrapped core.
type redactingCore struct {
	zapcore.Core
}

func (c redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return redactingCore{c.Core.With(redactFields(fields))}
}

func (c redactingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c redactingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = sanitizeLogMessage(ent.Message)
	return c.Core.Write(ent, redactFields(fields))
}

// gatedCore drops everything while its switch is off.
type gatedCore struct {
	zapcore.Core
	on *atomic.Bool
}

func (c gatedCore) Enabled(lvl zapcore.Level) bool {
	return c.on.Load() && c.Core.Enabled(lvl)
}

func (c gatedCore) With(fields []zapcore.Field) zapcore.Core {
	return gatedCore{Core: c.Core.With(fields), on: c.on}
}

func (c gatedCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write is reached through the tee even when disabled, so it checks again.
func (c gatedCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	if !c.on.Load() {
		return nil
	}
	return c.Core.Write(ent, fields)
}

func redactFields(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		switch f.Type {
		case zapcore.StringType:
			f.String = sanitizeLogMessage(f.String)
		case zapcore.ErrorType:
			if err, ok := f.Interface.(error); ok && err != nil {
				f = zap.String(f.Key, sanitizeLogMessage(err.Error()))
			}
		}
		out[i] = f
	}
	return out
}
