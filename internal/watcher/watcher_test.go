package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileOpString(t *testing.T) {
	tests := []struct {
		op       FileOp
		expected string
	}{
		{FileCreated, "created"},
		{FileWritten, "written"},
		{FileRemoved, "removed"},
		{FileOp(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.op.String(); got != tt.expected {
				t.Errorf("FileOp.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func newTestWatcher(t *testing.T, root string, exclude ...string) *FileWatcher {
	t.Helper()
	fw, err := NewFileWatcher(root, ".xml", exclude...)
	if err != nil {
		t.Fatalf("NewFileWatcher failed: %v", err)
	}
	fw.SetDebounceDelay(50 * time.Millisecond)
	t.Cleanup(func() { fw.Close() })
	return fw
}

func waitChange(t *testing.T, fw *FileWatcher) Change {
	t.Helper()
	select {
	case change := <-fw.Changes():
		return change
	case err := <-fw.Errors():
		t.Fatalf("Unexpected error: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for change")
	}
	return Change{}
}

func expectQuiet(t *testing.T, fw *FileWatcher, d time.Duration) {
	t.Helper()
	select {
	case change := <-fw.Changes():
		t.Fatalf("unexpected change: %v", change.Paths)
	case <-time.After(d):
	}
}

func TestNewFileWatcher(t *testing.T) {
	tmpDir := t.TempDir()
	fw := newTestWatcher(t, tmpDir)

	if fw.RootDir() != tmpDir {
		t.Errorf("RootDir() = %v, want %v", fw.RootDir(), tmpDir)
	}
}

func TestNewFileWatcher_NonExistentDir(t *testing.T) {
	fw, err := NewFileWatcher(filepath.Join(t.TempDir(), "missing"), ".xml")
	if err != nil {
		t.Fatalf("NewFileWatcher with non-existent dir failed: %v", err)
	}
	fw.Close()
}

func TestFileWatcher_NestedWrite(t *testing.T) {
	tmpDir := t.TempDir()
	sub := filepath.Join(tmpDir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	part := filepath.Join(sub, "part.xml")
	if err := os.WriteFile(part, []byte("<a/>"), 0644); err != nil {
		t.Fatal(err)
	}

	fw := newTestWatcher(t, tmpDir)

	if err := os.WriteFile(part, []byte("<b/>"), 0644); err != nil {
		t.Fatal(err)
	}

	change := waitChange(t, fw)
	if len(change.Paths) != 1 || change.Paths[0] != part {
		t.Fatalf("Paths = %v, want [%s]", change.Paths, part)
	}
	if change.Ops[part] != FileWritten {
		t.Errorf("Op = %v, want written", change.Ops[part])
	}
}

func TestFileWatcher_BurstIsCoalesced(t *testing.T) {
	tmpDir := t.TempDir()
	fw := newTestWatcher(t, tmpDir)

	a := filepath.Join(tmpDir, "1_a.xml")
	b := filepath.Join(tmpDir, "2_b.xml")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(a, []byte{byte('0' + i)}, 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(b, []byte{byte('0' + i)}, 0644); err != nil {
			t.Fatal(err)
		}
	}

	change := waitChange(t, fw)
	if len(change.Paths) != 2 || change.Paths[0] != a || change.Paths[1] != b {
		t.Fatalf("Paths = %v, want [%s %s]", change.Paths, a, b)
	}
	expectQuiet(t, fw, 200*time.Millisecond)
}

func TestFileWatcher_Filtering(t *testing.T) {
	tmpDir := t.TempDir()
	for _, dir := range []string{"compiled", ".drafts", "sub"} {
		if err := os.MkdirAll(filepath.Join(tmpDir, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}
	fw := newTestWatcher(t, tmpDir, "compiled")

	writes := []string{
		filepath.Join(tmpDir, "compiled", "1_a.xml"),
		filepath.Join(tmpDir, "sub", "notes.txt"),
	}
	for _, p := range writes {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	expectQuiet(t, fw, 300*time.Millisecond)

	upper := filepath.Join(tmpDir, "sub", "1_UP.XML")
	if err := os.WriteFile(upper, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	change := waitChange(t, fw)
	if len(change.Paths) != 1 || change.Paths[0] != upper {
		t.Errorf("Paths = %v, want [%s]", change.Paths, upper)
	}

	hidden := filepath.Join(tmpDir, ".drafts", "1_h.xml")
	if err := os.WriteFile(hidden, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	change = waitChange(t, fw)
	if len(change.Paths) != 1 || change.Paths[0] != hidden {
		t.Errorf("Paths = %v, want [%s]", change.Paths, hidden)
	}
}

func TestFileWatcher_NewDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	fw := newTestWatcher(t, tmpDir)

	newDir := filepath.Join(tmpDir, "added")
	if err := os.Mkdir(newDir, 0755); err != nil {
		t.Fatal(err)
	}
	// Let the watcher pick up the directory.
	time.Sleep(100 * time.Millisecond)

	file := filepath.Join(newDir, "1_new.xml")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	change := waitChange(t, fw)
	found := false
	for _, p := range change.Paths {
		if p == file {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s in %v", file, change.Paths)
	}
}

func TestFileWatcher_Removed(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "1_a.xml")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	fw := newTestWatcher(t, tmpDir)

	if err := os.Remove(file); err != nil {
		t.Fatal(err)
	}

	change := waitChange(t, fw)
	if change.Ops[file] != FileRemoved {
		t.Errorf("Op = %v, want removed", change.Ops[file])
	}
}

func TestFileWatcher_Run(t *testing.T) {
	tmpDir := t.TempDir()
	fw := newTestWatcher(t, tmpDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Change, 1)
	done := make(chan error, 1)
	go func() {
		done <- fw.Run(ctx, func(c Change) {
			got <- c
			cancel()
		}, nil)
	}()

	if err := os.WriteFile(filepath.Join(tmpDir, "1_a.xml"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-got:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not deliver the change")
	}
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestFileWatcher_RunStopsOnClose(t *testing.T) {
	fw, err := NewFileWatcher(t.TempDir(), ".xml")
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- fw.Run(context.Background(), func(Change) {}, nil) }()

	if err := fw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop after Close")
	}
}
