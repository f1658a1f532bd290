package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kvy1/kvy-xmls/internal/models"
)

// DefaultLogFile is the processing log written in the working directory.
const DefaultLogFile = "processing.log"

// sectionRule frames section banners in the processing log.
var sectionRule = strings.Repeat("─", 44)

// FileLogger writes timestamped entries to a single processing log file.
// The file is truncated when the logger is created. Each entry is written
// whole while holding the mutex, so entries from parallel workers never
// interleave within a line.
type FileLogger struct {
	path     string
	file     *os.File
	logLevel string
	now      func() time.Time
	mu       sync.Mutex
}

// NewFileLogger creates the log file at path, truncating any previous content,
// with log level "info".
func NewFileLogger(path string) (*FileLogger, error) {
	return NewFileLoggerWithLevel(path, "info")
}

// NewFileLoggerWithLevel creates the log file at path with the given level.
// Parent directories are created when missing.
func NewFileLoggerWithLevel(path string, logLevel string) (*FileLogger, error) {
	if path == "" {
		path = DefaultLogFile
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	return &FileLogger{
		path:     path,
		file:     file,
		logLevel: normalizeLogLevel(logLevel),
		now:      time.Now,
	}, nil
}

// Path returns the log file location.
func (fl *FileLogger) Path() string {
	return fl.path
}

// LogSection writes a banner: a blank line, a rule, the title and a rule.
// Banners are written regardless of level.
func (fl *FileLogger) LogSection(title string) {
	fl.write(fmt.Sprintf("\n%s\n%s\n%s\n", sectionRule, title, sectionRule))
}

// LogTrace logs a trace-level message (most verbose).
func (fl *FileLogger) LogTrace(message string) {
	fl.logWithLevel("trace", message)
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) {
	fl.logWithLevel("debug", message)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.logWithLevel("info", message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.logWithLevel("warn", message)
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	fl.logWithLevel("error", message)
}

// LogProgress is a no-op: progress is shown on the console only.
func (fl *FileLogger) LogProgress(completed, total int) {
}

// LogSummary writes the run totals at INFO level.
func (fl *FileLogger) LogSummary(result *models.BatchResult) {
	if result == nil || !enabled(fl.logLevel, "info") {
		return
	}

	ts := fl.timestamp()
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]  Files found: %d\n", ts, result.TotalFiles)
	fmt.Fprintf(&b, "[%s]  Compiled:    %d\n", ts, result.Compiled)
	fmt.Fprintf(&b, "[%s]  Failed:      %d\n", ts, result.Failed)
	if result.Skipped > 0 {
		fmt.Fprintf(&b, "[%s]  Skipped:     %d\n", ts, result.Skipped)
	}
	fmt.Fprintf(&b, "[%s]  Duration:    %s\n", ts, formatDuration(result.Duration))
	fl.write(b.String())
}

// logWithLevel formats "[YYYY-MM-DD HH:MM:SS]  message" if the level allows it.
func (fl *FileLogger) logWithLevel(level string, message string) {
	if !enabled(fl.logLevel, level) {
		return
	}
	fl.write(fmt.Sprintf("[%s]  %s\n", fl.timestamp(), message))
}

func (fl *FileLogger) timestamp() string {
	return fl.now().Format("2006-01-02 15:04:05")
}

// Close flushes and closes the log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.file != nil {
		if err := fl.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync log file: %w", err)
		}
		if err := fl.file.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
		fl.file = nil
	}

	return nil
}

// write is the single point where bytes reach the file.
func (fl *FileLogger) write(entry string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.file != nil {
		fl.file.WriteString(entry)
		fl.file.Sync()
	}
}
