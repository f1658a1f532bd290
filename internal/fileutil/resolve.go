package fileutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveInclude joins an include reference onto the directory of the
// including document. On platforms whose separator is not a backslash, every
// backslash in ref becomes a forward slash first. The result is a candidate
// only; it may not exist.
func ResolveInclude(baseDir, ref string) string {
	return resolveWithSeparator(baseDir, ref, filepath.Separator)
}

func resolveWithSeparator(baseDir, ref string, sep rune) string {
	if sep != '\\' {
		ref = strings.ReplaceAll(ref, `\`, "/")
	}
	return filepath.Join(baseDir, ref)
}

// Exists reports whether path names an existing file or directory.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// OutputPath returns where a root document is written: outputDir plus the
// document's base name. Subdirectories are flattened away.
func OutputPath(outputDir, source string) string {
	return filepath.Join(outputDir, filepath.Base(source))
}

// ExcludedOutputDir returns the name of outputDir when it sits directly below
// root, so discovery can skip previously compiled files.
func ExcludedOutputDir(root, outputDir string) []string {
	rel, err := filepath.Rel(root, outputDir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || strings.ContainsRune(rel, filepath.Separator) {
		return nil
	}
	return []string{rel}
}
