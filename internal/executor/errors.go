package executor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kvy1/kvy-xmls/internal/models"
)

// FilePhase represents the step of processing where a file failed.
type FilePhase int

const (
	// PhaseRead represents failures reading the root document itself.
	PhaseRead FilePhase = iota
	// PhaseExpand represents failures while expanding includes.
	PhaseExpand
	// PhaseWrite represents failures writing the compiled output.
	PhaseWrite
	// PhaseCollision represents files skipped because another source owns the output name.
	PhaseCollision
)

// String returns the string representation of FilePhase.
func (p FilePhase) String() string {
	switch p {
	case PhaseRead:
		return "read"
	case PhaseExpand:
		return "expand"
	case PhaseWrite:
		return "write"
	case PhaseCollision:
		return "collision"
	default:
		return "unknown"
	}
}

// FileError represents a failure compiling one root document.
type FileError struct {
	Path      string    // Root document (or output path for write failures)
	Phase     FilePhase // Step that failed
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
}

// NewFileError creates a new FileError with the current timestamp.
func NewFileError(path string, phase FilePhase, err error) *FileError {
	return &FileError{
		Path:      path,
		Phase:     phase,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface for FileError.
func (e *FileError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s failed", e.Phase, e.Path)
	}
	return fmt.Sprintf("%s %s: %v", e.Phase, e.Path, e.Err)
}

// Unwrap returns the underlying error for error wrapping support.
func (e *FileError) Unwrap() error {
	return e.Err
}

// BatchError aggregates the per-file failures of one run.
type BatchError struct {
	FileErrors  []*FileError
	TotalFiles  int
	FailedFiles int
}

// NewBatchError collects the failures recorded in result.
// It returns nil when no file failed.
func NewBatchError(result *models.BatchResult) *BatchError {
	if result == nil || result.Failed == 0 {
		return nil
	}

	be := &BatchError{TotalFiles: result.TotalFiles}
	for _, failed := range result.FailedFiles {
		var fe *FileError
		if !errors.As(failed.Error, &fe) {
			fe = NewFileError(failed.Source, PhaseExpand, failed.Error)
		}
		be.FileErrors = append(be.FileErrors, fe)
		be.FailedFiles++
	}
	return be
}

// Error implements the error interface for BatchError.
func (e *BatchError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("compile failed: %d/%d files failed", e.FailedFiles, e.TotalFiles))
	for _, fe := range e.FileErrors {
		sb.WriteString(fmt.Sprintf("\n  - %s", fe.Error()))
	}
	return sb.String()
}

// Unwrap returns the file errors so errors.Is and errors.As can traverse them.
func (e *BatchError) Unwrap() []error {
	if len(e.FileErrors) == 0 {
		return nil
	}
	errs := make([]error, len(e.FileErrors))
	for i, fe := range e.FileErrors {
		errs[i] = fe
	}
	return errs
}

// IsFileError checks if the error is or wraps a FileError.
func IsFileError(err error) bool {
	if err == nil {
		return false
	}
	var fe *FileError
	return errors.As(err, &fe)
}

// PhaseOf returns the phase of the first FileError in err's chain.
func PhaseOf(err error) (FilePhase, bool) {
	var fe *FileError
	if errors.As(err, &fe) {
		return fe.Phase, true
	}
	return 0, false
}
