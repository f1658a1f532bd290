package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/kvy1/kvy-xmls/internal/models"
)

// ConsoleLogger logs compile progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// Color output is enabled when the writer is a terminal unless NO_COLOR is set.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// SetColor overrides terminal detection.
func (cl *ConsoleLogger) SetColor(enabled bool) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.colorOutput = enabled
}

// isTerminal checks if the writer is a terminal that supports colors.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// LogSection prints a bold section title at INFO level.
func (cl *ConsoleLogger) LogSection(title string) {
	if !cl.shouldLog("info") {
		return
	}
	if cl.colorOutput {
		title = color.New(color.Bold).Sprint(title)
	}
	cl.print(fmt.Sprintf("[%s] %s\n", timestamp(), title))
}

// LogTrace logs a trace-level message (most verbose).
// Format: "[HH:MM:SS] [TRACE] <message>"
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return cl.writer != nil && enabled(cl.logLevel, messageLevel)
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	tag := level
	if cl.colorOutput {
		tag = levelColor(level).Sprint(level)
	}
	cl.print(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), tag, message))
}

func levelColor(level string) *color.Color {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack)
	case "DEBUG":
		return color.New(color.FgCyan)
	case "WARN":
		return color.New(color.FgYellow)
	case "ERROR":
		return color.New(color.FgRed)
	default:
		return color.New(color.FgBlue)
	}
}

// LogProgress renders a progress bar line at INFO level.
// Format: "[HH:MM:SS] Progress: [=====     ] 5/10 (50%)"
func (cl *ConsoleLogger) LogProgress(completed, total int) {
	if !cl.shouldLog("info") {
		return
	}

	pb := NewProgressBar(total, 10, cl.colorOutput)
	pb.Update(completed)
	cl.print(fmt.Sprintf("[%s] Progress: %s\n", timestamp(), pb.Render()))
}

// LogSummary logs the run summary at INFO level, failed files in red.
func (cl *ConsoleLogger) LogSummary(result *models.BatchResult) {
	if result == nil || !cl.shouldLog("info") {
		return
	}

	ts := timestamp()
	paint := func(c color.Attribute, s string) string {
		if cl.colorOutput {
			return color.New(c).Sprint(s)
		}
		return s
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", ts, paint(color.Bold, "=== Compile Summary ==="))
	fmt.Fprintf(&b, "[%s] Files found: %d\n", ts, result.TotalFiles)
	fmt.Fprintf(&b, "[%s] %s\n", ts, paint(color.FgGreen, fmt.Sprintf("Compiled: %d", result.Compiled)))
	if result.Failed > 0 {
		fmt.Fprintf(&b, "[%s] %s\n", ts, paint(color.FgRed, fmt.Sprintf("Failed: %d", result.Failed)))
	} else {
		fmt.Fprintf(&b, "[%s] Failed: 0\n", ts)
	}
	if result.Skipped > 0 {
		fmt.Fprintf(&b, "[%s] %s\n", ts, paint(color.FgYellow, fmt.Sprintf("Skipped: %d", result.Skipped)))
	}
	fmt.Fprintf(&b, "[%s] Duration: %s\n", ts, formatDuration(result.Duration))

	for _, failed := range result.FailedFiles {
		fmt.Fprintf(&b, "[%s]   - %s: %v\n", ts, paint(color.FgRed, failed.Source), failed.Error)
	}

	cl.print(b.String())
}

func (cl *ConsoleLogger) print(s string) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.writer.Write([]byte(s))
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "250ms", "5s", "1m30s"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		minutes := d / time.Minute
		seconds := (d % time.Minute) / time.Second
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d >= time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}

// NoOpLogger discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogSection(title string)               {}
func (n *NoOpLogger) LogDebug(message string)               {}
func (n *NoOpLogger) LogInfo(message string)                {}
func (n *NoOpLogger) LogWarn(message string)                {}
func (n *NoOpLogger) LogError(message string)               {}
func (n *NoOpLogger) LogProgress(completed, total int)      {}
func (n *NoOpLogger) LogSummary(result *models.BatchResult) {}
