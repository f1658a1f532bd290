package display

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Warning represents a user-facing warning message
type Warning struct {
	Title      string   // Main warning title
	Message    string   // Detailed explanation (optional)
	Files      []string // Related files (optional)
	Suggestion string   // Action to take (optional)
}

// Display writes the warning to out, in yellow when out is a terminal.
func (w Warning) Display(out io.Writer) {
	w.DisplayColor(out, IsTerminal(out))
}

// DisplayColor writes the warning, forcing color on or off.
func (w Warning) DisplayColor(out io.Writer, enableColor bool) {
	var b strings.Builder

	b.WriteString("Warning: ")
	b.WriteString(w.Title)
	b.WriteString("\n")

	if w.Message != "" {
		b.WriteString("    ")
		b.WriteString(w.Message)
		b.WriteString("\n")
	}

	if len(w.Files) > 0 {
		if len(w.Files) == 1 {
			b.WriteString("    Affected file:\n")
		} else {
			b.WriteString("    Affected files:\n")
		}
		for i, file := range w.Files {
			fmt.Fprintf(&b, "      %d. %s\n", i+1, file)
		}
	}

	if w.Suggestion != "" {
		b.WriteString("    Suggestion:\n")
		b.WriteString("    ")
		b.WriteString(w.Suggestion)
		b.WriteString("\n")
	}

	fmt.Fprint(out, painter(enableColor, colorWarning)(b.String()))
}

// WarnCollision creates a warning for sources that compile to the same
// output file name. Paths are shown relative to root when possible.
func WarnCollision(root, outputName string, sources []string) Warning {
	files := make([]string, len(sources))
	for i, src := range sources {
		files[i] = relative(root, src)
	}
	return Warning{
		Title:      "Output collision",
		Message:    fmt.Sprintf("%d sources compile to %s; the last one written wins", len(sources), outputName),
		Files:      files,
		Suggestion: "Rename one of the sources, or enable collision_check to keep only the first",
	}
}

// WarnMissingIncludes creates a warning listing the include paths of source
// that did not resolve to a file. Paths are shown relative to root when possible.
func WarnMissingIncludes(root, source string, paths []string) Warning {
	files := make([]string, len(paths))
	for i, p := range paths {
		files[i] = relative(root, p)
	}
	return Warning{
		Title:   "Missing includes in " + relative(root, source),
		Message: "Compiled without these includes",
		Files:   files,
	}
}

func relative(root, path string) string {
	if root == "" {
		return path
	}
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
