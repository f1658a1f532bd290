// Package filelock guards the output directory of a compile run and writes
// compiled documents so readers never observe a partially written file.
package filelock

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// LockFileName is created inside the output directory while a run holds it.
const LockFileName = ".xmlc.lock"

// ErrLocked is returned when another process holds the output directory.
var ErrLocked = errors.New("output directory is locked by another compile run")

// DirLock is an exclusive, cross-process lock on an output directory.
type DirLock struct {
	flock *flock.Flock
	path  string
}

// NewDirLock returns an unacquired lock for dir.
func NewDirLock(dir string) *DirLock {
	path := filepath.Join(dir, LockFileName)
	return &DirLock{
		flock: flock.New(path),
		path:  path,
	}
}

// Path returns the lock file location.
func (l *DirLock) Path() string {
	return l.path
}

// TryLock attempts to take the lock without blocking.
func (l *DirLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return false, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(l.path), err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock on %s: %w", l.path, err)
	}
	return acquired, nil
}

// Lock waits for the lock, polling every retryDelay, until ctx is done.
// A cancelled or expired ctx yields ErrLocked.
func (l *DirLock) Lock(ctx context.Context, retryDelay time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(l.path), err)
	}
	if retryDelay <= 0 {
		retryDelay = 50 * time.Millisecond
	}

	acquired, err := l.flock.TryLockContext(ctx, retryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s", ErrLocked, l.path)
		}
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}
	if !acquired {
		return fmt.Errorf("%w: %s", ErrLocked, l.path)
	}
	return nil
}

// Unlock releases the lock and removes the lock file.
func (l *DirLock) Unlock() error {
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file %s: %w", l.path, err)
	}
	return nil
}

// AtomicWrite writes data to path through a temp file in the same directory
// followed by a rename. On failure the previous content of path is untouched
// and no temp file remains.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}

	tempFile = nil
	return nil
}

// WriteIfChanged atomically writes data unless path already holds exactly
// data. It reports whether the file was written.
func WriteIfChanged(path string, data []byte) (bool, error) {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, data) {
		return false, nil
	}
	if err := AtomicWrite(path, data); err != nil {
		return false, err
	}
	return true, nil
}
