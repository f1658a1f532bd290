package models

import "time"

// File processing status constants
const (
	StatusCompiled = "COMPILED" // Output written
	StatusFailed   = "FAILED"   // Read, expansion or write failed; no output written
	StatusSkipped  = "SKIPPED"  // Not processed (collision check or cancelled run)
)

// FileResult represents the result of compiling a single root document
type FileResult struct {
	Source     string        // Root document path
	Output     string        // Output path (empty when nothing was written)
	Status     string        // COMPILED, FAILED or SKIPPED
	Text       string        // Final text written to Output
	Error      error         // Error if processing failed
	Duration   time.Duration // Time taken for this file
	Includes   int           // Number of include directives resolved
	Missing    int           // Number of include directives whose file did not exist
	MissingAt  []string      // Distinct candidate paths of the missing includes
	Collisions []string      // Other sources that map to the same output name
}

// Succeeded reports whether the file was compiled and written
func (r FileResult) Succeeded() bool {
	return r.Status == StatusCompiled
}

// BatchResult represents the aggregate result of one batch run
type BatchResult struct {
	Root        string            // Input root directory
	OutputDir   string            // Directory outputs were written to
	TotalFiles  int               // Number of discovered root documents
	Compiled    int               // Number of files written
	Failed      int               // Number of files that failed
	Skipped     int               // Number of files skipped
	StartedAt   time.Time         // When the run started
	Duration    time.Duration     // Total run time
	Files       []FileResult      // Per-file results, in discovery order
	Outputs     map[string]string // Source path -> final text for compiled files
	FailedFiles []FileResult      // Details of failed files
}

// Succeeded reports whether no file failed
func (b *BatchResult) Succeeded() bool {
	return b != nil && b.Failed == 0
}
