package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kvy1/kvy-xmls/internal/config"
	"github.com/kvy1/kvy-xmls/internal/expander"
	"github.com/kvy1/kvy-xmls/internal/filelock"
	"github.com/kvy1/kvy-xmls/internal/fileutil"
	"github.com/kvy1/kvy-xmls/internal/logger"
	"github.com/kvy1/kvy-xmls/internal/models"
	"github.com/kvy1/kvy-xmls/internal/pattern"
)

// DefaultLockTimeout bounds how long a run waits for another run's output lock.
const DefaultLockTimeout = 10 * time.Second

// Logger receives run banners, per-include and per-file entries, progress and the summary.
type Logger interface {
	LogSection(title string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogProgress(completed, total int)
	LogSummary(result *models.BatchResult)
}

// Options configures one batch run.
type Options struct {
	OutputDir       string        // Absolute output directory
	FilePattern     string        // File name pattern for root documents
	MaxConcurrency  int           // Worker count (<= 0 means one worker per file)
	WrapMode        string        // config.WrapNone, WrapPlaceholder or WrapDocument
	CollisionCheck  bool          // Keep only the first source per output name
	MaxIncludeDepth int           // Passed to the expander
	DetectCycles    bool          // Passed to the expander
	LockTimeout     time.Duration // Wait for a held output lock (0 = DefaultLockTimeout)
}

// OptionsFromConfig builds run options for root from cfg.
func OptionsFromConfig(cfg *config.Config, root string) Options {
	return Options{
		OutputDir:       cfg.ResolveOutputDir(root),
		FilePattern:     cfg.FilePattern,
		MaxConcurrency:  cfg.EffectiveConcurrency(),
		WrapMode:        cfg.WrapMode,
		CollisionCheck:  cfg.CollisionCheck,
		MaxIncludeDepth: cfg.MaxIncludeDepth,
		DetectCycles:    cfg.DetectCycles,
	}
}

// Batch discovers root documents below a directory, expands each one on a
// bounded worker pool and writes the results flat into the output directory.
type Batch struct {
	opts     Options
	logger   Logger
	expander *expander.Expander
}

// NewBatch constructs a Batch. The log parameter may be nil to disable logging.
func NewBatch(opts Options, log Logger) *Batch {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if opts.WrapMode == "" {
		opts.WrapMode = config.WrapNone
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	return &Batch{
		opts:   opts,
		logger: log,
		expander: expander.New(log, expander.Options{
			MaxDepth:     opts.MaxIncludeDepth,
			DetectCycles: opts.DetectCycles,
		}),
	}
}

// Expander returns the expander used for every root document.
func (b *Batch) Expander() *expander.Expander {
	return b.expander
}

// Discover returns the sorted root documents below root. The output
// directory is skipped when it lies directly below root.
func (b *Batch) Discover(root string) ([]string, error) {
	exclude := fileutil.ExcludedOutputDir(root, b.opts.OutputDir)
	scan, err := fileutil.FindCandidates(root, b.opts.FilePattern, exclude...)
	if err != nil {
		return nil, err
	}
	for _, scanErr := range scan.Errors {
		b.logger.LogWarn(scanErr.Error())
	}
	return scan.Files, nil
}

// Run compiles every root document below root. Per-file failures are logged
// and recorded in the result; the returned error is reserved for failures
// that stop the whole run (unusable output directory, held lock, cancellation).
func (b *Batch) Run(ctx context.Context, root string) (*models.BatchResult, error) {
	if b == nil {
		return nil, fmt.Errorf("batch is nil")
	}

	result := &models.BatchResult{
		Root:      root,
		OutputDir: b.opts.OutputDir,
		StartedAt: time.Now(),
		Outputs:   make(map[string]string),
	}
	defer func() { result.Duration = time.Since(result.StartedAt) }()

	if err := os.MkdirAll(b.opts.OutputDir, 0755); err != nil {
		return result, fmt.Errorf("failed to create output directory %s: %w", b.opts.OutputDir, err)
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	lock := filelock.NewDirLock(b.opts.OutputDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return result, err
	}
	if !acquired {
		b.logger.LogInfo(fmt.Sprintf("Waiting up to %s for %s", b.opts.LockTimeout, lock.Path()))
		lockCtx, cancel := context.WithTimeout(ctx, b.opts.LockTimeout)
		err := lock.Lock(lockCtx, 50*time.Millisecond)
		cancel()
		if err != nil {
			return result, err
		}
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			b.logger.LogWarn(err.Error())
		}
	}()

	files, err := b.Discover(root)
	if err != nil {
		return result, err
	}
	result.TotalFiles = len(files)

	if len(files) == 0 {
		b.logger.LogInfo("No XML files found to process.")
		return result, nil
	}

	collisions := b.detectCollisions(files)
	runErr := b.compileAll(ctx, files, collisions, result)

	for _, fr := range result.Files {
		switch fr.Status {
		case models.StatusCompiled:
			result.Compiled++
			result.Outputs[fr.Source] = fr.Text
		case models.StatusFailed:
			result.Failed++
			result.FailedFiles = append(result.FailedFiles, fr)
		default:
			result.Skipped++
		}
	}

	return result, runErr
}

// detectCollisions groups sources by output file name and warns about every
// group with more than one member. The returned map lists, for each source,
// the other sources sharing its output name.
func (b *Batch) detectCollisions(files []string) map[string][]string {
	byName := make(map[string][]string)
	for _, f := range files {
		name := filepath.Base(f)
		byName[name] = append(byName[name], f)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	collisions := make(map[string][]string)
	for _, name := range names {
		group := byName[name]
		if len(group) < 2 {
			continue
		}
		b.logger.LogWarn(fmt.Sprintf("Output collision: %s is produced by %s", name, strings.Join(group, ", ")))
		for _, src := range group {
			for _, other := range group {
				if other != src {
					collisions[src] = append(collisions[src], other)
				}
			}
		}
	}
	return collisions
}

type fileJob struct {
	index  int
	source string
}

type fileOutcome struct {
	index  int
	result models.FileResult
}

// compileAll runs one task per file on a bounded pool and stores results in
// discovery order. Progress is reported as results arrive.
func (b *Batch) compileAll(ctx context.Context, files []string, collisions map[string][]string, result *models.BatchResult) error {
	result.Files = make([]models.FileResult, len(files))

	var jobs []fileJob
	for i, source := range files {
		others := collisions[source]
		if b.opts.CollisionCheck && len(others) > 0 && others[0] < source {
			// Sorted discovery order: the first source of a group owns the name.
			err := NewFileError(source, PhaseCollision, fmt.Errorf("output %s already produced by %s", filepath.Base(source), others[0]))
			b.logger.LogWarn(fmt.Sprintf("Skipped %s: %v", source, err.Err))
			result.Files[i] = models.FileResult{
				Source:     source,
				Status:     models.StatusSkipped,
				Error:      err,
				Collisions: others,
			}
			continue
		}
		jobs = append(jobs, fileJob{index: i, source: source})
	}

	workers := b.opts.MaxConcurrency
	if workers <= 0 || workers > len(jobs) {
		workers = len(jobs)
	}
	if workers == 0 {
		workers = 1
	}

	semaphore := make(chan struct{}, workers)
	outcomes := make(chan fileOutcome, len(jobs))
	launched := make([]bool, len(files))

	var wg sync.WaitGroup
	var launchErr error

launch:
	for _, job := range jobs {
		select {
		case <-ctx.Done():
			launchErr = ctx.Err()
			break launch
		case semaphore <- struct{}{}:
		}

		launched[job.index] = true
		wg.Add(1)
		go func(job fileJob) {
			defer wg.Done()
			defer func() { <-semaphore }()

			fr := b.CompileFile(job.source)
			fr.Collisions = collisions[job.source]
			outcomes <- fileOutcome{index: job.index, result: fr}
		}(job)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	completed := 0
	for outcome := range outcomes {
		result.Files[outcome.index] = outcome.result
		completed++
		b.logger.LogProgress(completed, len(jobs))
	}

	if launchErr != nil {
		for _, job := range jobs {
			if !launched[job.index] {
				result.Files[job.index] = models.FileResult{
					Source: job.source,
					Status: models.StatusSkipped,
					Error:  launchErr,
				}
			}
		}
	}

	return launchErr
}

// CompileFile expands one root document, applies the wrap mode and writes the
// output. It never panics on I/O failure; failures are returned in the result.
func (b *Batch) CompileFile(source string) (fr models.FileResult) {
	start := time.Now()
	fr.Source = source
	defer func() { fr.Duration = time.Since(start) }()

	expanded, err := b.expander.ExpandFile(source)
	if err != nil {
		phase := PhaseExpand
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			phase = PhaseRead
		}
		fr.Status = models.StatusFailed
		fr.Error = NewFileError(source, phase, err)
		b.logger.LogError(fmt.Sprintf("Error processing %s: %v", source, err))
		return fr
	}

	text := b.wrap(expanded.Document.Resolved)
	output := fileutil.OutputPath(b.opts.OutputDir, source)

	if _, err := filelock.WriteIfChanged(output, []byte(text)); err != nil {
		fr.Status = models.StatusFailed
		fr.Error = NewFileError(output, PhaseWrite, err)
		b.logger.LogError(fmt.Sprintf("Error writing %s: %v", output, err))
		return fr
	}

	fr.Status = models.StatusCompiled
	fr.Output = output
	fr.Text = text
	fr.Includes = expanded.Tree.Count(models.IncludeResolved)
	fr.Missing = expanded.Tree.Count(models.IncludeMissing)
	fr.MissingAt = expanded.Tree.Paths(models.IncludeMissing)
	b.logger.LogInfo(fmt.Sprintf("Processed: %s", source))
	return fr
}

func (b *Batch) wrap(text string) string {
	switch b.opts.WrapMode {
	case config.WrapPlaceholder:
		return pattern.WrapPlaceholders(text)
	case config.WrapDocument:
		return pattern.WrapDocument(text)
	default:
		return text
	}
}
