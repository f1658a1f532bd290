// Package watcher reports changes to XML sources below a root directory,
// coalescing bursts of file system events into a single change set.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileOp represents the type of file operation
type FileOp int

const (
	// FileCreated indicates a new file was created
	FileCreated FileOp = iota
	// FileWritten indicates a file was written to
	FileWritten
	// FileRemoved indicates a file was removed or renamed away
	FileRemoved
)

// String returns a human-readable representation of the file operation
func (op FileOp) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileWritten:
		return "written"
	case FileRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is one debounced set of modified files.
type Change struct {
	Paths []string          // Sorted, de-duplicated absolute paths
	Ops   map[string]FileOp // Last operation seen per path
	At    time.Time         // When the quiet period ended
}

// DefaultDebounceDelay is the quiet period used when none is configured.
const DefaultDebounceDelay = 500 * time.Millisecond

// FileWatcher watches a directory tree for changes to files with the given
// extension. Directories with an excluded name are not watched.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	changes   chan Change
	errors    chan error
	done      chan struct{}
	rootDir   string
	extension string
	exclude   map[string]bool

	mu            sync.Mutex
	debounceDelay time.Duration
	timer         *time.Timer
	pending       map[string]FileOp
	closed        bool
}

// NewFileWatcher creates a FileWatcher for rootDir. Only files whose
// extension equals extension (case-insensitive, e.g. ".xml") are reported.
func NewFileWatcher(rootDir, extension string, excludeDirs ...string) (*FileWatcher, error) {
	rootDir = filepath.Clean(rootDir)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	exclude := make(map[string]bool, len(excludeDirs))
	for _, name := range excludeDirs {
		exclude[name] = true
	}

	fw := &FileWatcher{
		watcher:       watcher,
		changes:       make(chan Change, 16),
		errors:        make(chan error, 10),
		done:          make(chan struct{}),
		rootDir:       rootDir,
		extension:     strings.ToLower(extension),
		exclude:       exclude,
		debounceDelay: DefaultDebounceDelay,
		pending:       make(map[string]FileOp),
	}

	if err := fw.addRecursive(rootDir); err != nil {
		watcher.Close()
		return nil, err
	}

	go fw.processEvents()

	return fw, nil
}

// addRecursive adds the directory and all its watchable subdirectories
func (fw *FileWatcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != fw.rootDir && fw.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			if os.IsPermission(err) {
				return nil
			}
			return err
		}
		return nil
	})
}

func (fw *FileWatcher) skipDir(name string) bool {
	return fw.exclude[name]
}

// processEvents processes fsnotify events until Close
func (fw *FileWatcher) processEvents() {
	for {
		select {
		case <-fw.done:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.sendError(err)
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if fw.skipDir(filepath.Base(path)) {
				return
			}
			if err := fw.addRecursive(path); err != nil {
				fw.sendError(err)
			}
			// Files may have been created before the directory was watched.
			fw.queueExisting(path)
			return
		}
	}

	if !fw.matches(path) {
		return
	}

	var op FileOp
	switch {
	case event.Has(fsnotify.Create):
		op = FileCreated
	case event.Has(fsnotify.Write):
		op = FileWritten
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		op = FileRemoved
	default:
		return
	}

	fw.queue(path, op)
}

func (fw *FileWatcher) queueExisting(dir string) {
	filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && fw.skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if fw.matches(path) {
			fw.queue(path, FileCreated)
		}
		return nil
	})
}

// matches checks the file extension
func (fw *FileWatcher) matches(path string) bool {
	if fw.extension == "" {
		return true
	}
	return strings.ToLower(filepath.Ext(path)) == fw.extension
}

// queue records path and restarts the quiet-period timer
func (fw *FileWatcher) queue(path string, op FileOp) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.closed {
		return
	}

	fw.pending[path] = op
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounceDelay, fw.flush)
}

// flush emits the pending set as one Change
func (fw *FileWatcher) flush() {
	fw.mu.Lock()
	if fw.closed || len(fw.pending) == 0 {
		fw.mu.Unlock()
		return
	}
	ops := fw.pending
	fw.pending = make(map[string]FileOp)
	fw.timer = nil
	fw.mu.Unlock()

	paths := make([]string, 0, len(ops))
	for p := range ops {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	select {
	case fw.changes <- Change{Paths: paths, Ops: ops, At: time.Now()}:
	case <-fw.done:
	}
}

func (fw *FileWatcher) sendError(err error) {
	select {
	case fw.errors <- err:
	default:
		// Error channel full, drop the error
	}
}

// Changes returns the channel of debounced change sets
func (fw *FileWatcher) Changes() <-chan Change {
	return fw.changes
}

// Errors returns the channel for receiving watcher errors
func (fw *FileWatcher) Errors() <-chan error {
	return fw.errors
}

// Run calls onChange for every change set until ctx is done or the watcher
// is closed. onChange runs on the calling goroutine, so invocations never
// overlap. Watcher errors go to onError when it is non-nil.
func (fw *FileWatcher) Run(ctx context.Context, onChange func(Change), onError func(error)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-fw.done:
			return nil
		case change := <-fw.changes:
			onChange(change)
		case err := <-fw.errors:
			if onError != nil {
				onError(err)
			}
		}
	}
}

// Close stops the file watcher and releases resources
func (fw *FileWatcher) Close() error {
	fw.mu.Lock()
	if fw.closed {
		fw.mu.Unlock()
		return nil
	}
	fw.closed = true
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.pending = nil
	fw.mu.Unlock()

	close(fw.done)

	return fw.watcher.Close()
}

// RootDir returns the root directory being watched
func (fw *FileWatcher) RootDir() string {
	return fw.rootDir
}

// SetDebounceDelay sets the quiet period. Call it before changes arrive.
func (fw *FileWatcher) SetDebounceDelay(delay time.Duration) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	fw.debounceDelay = delay
}
