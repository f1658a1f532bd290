package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// CandidatePattern is the default file name convention for root documents:
// a single digit, an underscore, anything, then ".xml".
const CandidatePattern = `^\d_.*\.xml$`

// ScanOptions configures the directory scanning behavior
type ScanOptions struct {
	// Pattern is a regex matched against the full file name (with extension)
	Pattern string
	// ExcludeDirs is a list of directory names to skip (e.g., "compiled")
	ExcludeDirs []string
	// MinDepth is the smallest file depth to include (1 = directly in dir)
	MinDepth int
	// MaxDepth is the largest file depth to include (0 = unlimited)
	MaxDepth int
}

// CandidateOptions returns the options selecting root documents: files exactly
// two levels below the root whose name matches pattern. Hidden directories
// are scanned like any other.
func CandidateOptions(pattern string, excludeDirs ...string) ScanOptions {
	if pattern == "" {
		pattern = CandidatePattern
	}
	return ScanOptions{
		Pattern:     pattern,
		ExcludeDirs: excludeDirs,
		MinDepth:    2,
		MaxDepth:    2,
	}
}

// ScanResult contains the results of a directory scan
type ScanResult struct {
	// Files contains the absolute paths of all matched files
	Files []string
	// Errors contains any errors encountered during scanning
	Errors []error
}

// ScanDirectory scans a directory for regular files matching the provided options.
// Depth is the number of path elements below dir: dir/a.xml is depth 1,
// dir/sub/a.xml is depth 2.
func ScanDirectory(dir string, opts ScanOptions) (*ScanResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	result := &ScanResult{
		Files:  make([]string, 0),
		Errors: make([]error, 0),
	}

	var patternRegex *regexp.Regexp
	if opts.Pattern != "" {
		patternRegex, err = regexp.Compile(opts.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
	}

	excludeMap := make(map[string]bool)
	for _, name := range opts.ExcludeDirs {
		excludeMap[name] = true
	}

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("error accessing %s: %w", path, err))
			return nil
		}

		if path == dir {
			return nil
		}

		depth := pathDepth(dir, path)

		if d.IsDir() {
			if excludeMap[d.Name()] {
				return filepath.SkipDir
			}
			// Files inside this directory sit at depth+1
			if opts.MaxDepth > 0 && depth >= opts.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if depth < opts.MinDepth || (opts.MaxDepth > 0 && depth > opts.MaxDepth) {
			return nil
		}

		if patternRegex != nil && !patternRegex.MatchString(d.Name()) {
			return nil
		}

		absPath, err := filepath.Abs(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to resolve path %s: %w", path, err))
			return nil
		}

		result.Files = append(result.Files, absPath)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	// Sort files for consistent output
	sort.Strings(result.Files)

	return result, nil
}

// FindCandidates returns the root documents under dir using CandidateOptions.
func FindCandidates(dir, pattern string, excludeDirs ...string) (*ScanResult, error) {
	return ScanDirectory(dir, CandidateOptions(pattern, excludeDirs...))
}

func pathDepth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
