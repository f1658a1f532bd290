package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveWithSeparator(t *testing.T) {
	tests := []struct {
		name    string
		baseDir string
		ref     string
		sep     rune
		want    string
	}{
		{"forward slashes", "/r/sub", "parts/a.xml", '/', "/r/sub/parts/a.xml"},
		{"backslashes converted", "/r/sub", `parts\a.xml`, '/', "/r/sub/parts/a.xml"},
		{"parent reference", "/r/sub", `..\shared\a.xml`, '/', "/r/shared/a.xml"},
		{"mixed separators", "/r/sub", `parts\x/a.xml`, '/', "/r/sub/parts/x/a.xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveWithSeparator(filepath.FromSlash(tt.baseDir), tt.ref, tt.sep)
			if got != filepath.FromSlash(tt.want) {
				t.Errorf("resolveWithSeparator(%q, %q) = %q, want %q", tt.baseDir, tt.ref, got, tt.want)
			}
		})
	}
}

func TestResolveIncludeBackslashMatchesForwardSlash(t *testing.T) {
	if filepath.Separator == '\\' {
		t.Skip("backslash is the native separator")
	}
	base := t.TempDir()
	if ResolveInclude(base, `a\b\c.xml`) != ResolveInclude(base, "a/b/c.xml") {
		t.Error("backslash and forward slash references should resolve identically")
	}
}

func TestExists(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "a.xml")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if !Exists(file) {
		t.Error("expected file to exist")
	}
	if Exists(filepath.Join(tmpDir, "b.xml")) {
		t.Error("expected missing file to not exist")
	}
}

func TestOutputPath(t *testing.T) {
	got := OutputPath(filepath.FromSlash("/r/compiled"), filepath.FromSlash("/r/KFM/1_a.xml"))
	if got != filepath.FromSlash("/r/compiled/1_a.xml") {
		t.Errorf("OutputPath() = %s", got)
	}
}

func TestExcludedOutputDir(t *testing.T) {
	root := filepath.FromSlash("/r")
	tests := []struct {
		outputDir string
		want      string
	}{
		{"/r/compiled", "compiled"},
		{"/r/a/b", ""},
		{"/elsewhere", ""},
		{"/r", ""},
	}

	for _, tt := range tests {
		got := ExcludedOutputDir(root, filepath.FromSlash(tt.outputDir))
		if tt.want == "" {
			if len(got) != 0 {
				t.Errorf("ExcludedOutputDir(%s) = %v, want none", tt.outputDir, got)
			}
			continue
		}
		if len(got) != 1 || got[0] != tt.want {
			t.Errorf("ExcludedOutputDir(%s) = %v, want [%s]", tt.outputDir, got, tt.want)
		}
	}
}
