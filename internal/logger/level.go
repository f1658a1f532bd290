// Package logger provides the log sinks used while compiling documents.
//
// FileLogger is the shared, append-only processing log: truncated when a run
// starts, written by every worker under one mutex, never read back.
// ConsoleLogger mirrors the same entries to a terminal with colored levels.
// Both filter by level and are safe for concurrent use.
package logger

import "strings"

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

var validLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidLevel reports whether level names a known log level.
func ValidLevel(level string) bool {
	return validLevels[strings.ToLower(strings.TrimSpace(level))]
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if validLevels[normalized] {
		return normalized
	}
	return "info"
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// enabled reports whether a message at messageLevel passes the configured level.
func enabled(configured, messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(configured)
}
