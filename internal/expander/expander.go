// Package expander resolves include directives recursively.
//
// A root document keeps its own markup; only the directive spans are replaced.
// Every included document is expanded with the same rules, then cleaned
// (placeholders unwrapped, comments removed) and flattened to a single line
// before it is spliced into its parent. Missing or failing includes never
// abort the parent: they become marker comments and a log entry.
package expander

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kvy1/kvy-xmls/internal/fileutil"
	"github.com/kvy1/kvy-xmls/internal/logger"
	"github.com/kvy1/kvy-xmls/internal/models"
	"github.com/kvy1/kvy-xmls/internal/pattern"
)

var (
	// ErrDepthExceeded is returned for an include nested deeper than Options.MaxDepth.
	ErrDepthExceeded = errors.New("maximum include depth exceeded")
	// ErrCycle is returned for an include of a file that is already being expanded.
	ErrCycle = errors.New("include cycle detected")
)

// Logger receives one entry per resolved, missing or failed include.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
}

// Options bounds recursion. The zero value imposes no bound at all.
type Options struct {
	// MaxDepth is the deepest include level allowed below a root (0 = unlimited)
	MaxDepth int
	// DetectCycles fails an include of a file already on the current include chain
	DetectCycles bool
}

// Result is the outcome of expanding one root document.
type Result struct {
	Document models.Document
	Tree     *models.IncludeNode
}

// Expander expands include directives. It holds no per-call state and is safe
// for concurrent use as long as its Logger is.
type Expander struct {
	logger Logger
	opts   Options
}

// New creates an Expander. A nil log discards all entries.
func New(log Logger, opts Options) *Expander {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Expander{logger: log, opts: opts}
}

// chain tracks the files currently being expanded for one root expansion.
type chain struct {
	active map[string]bool
}

// Expand returns the expanded text of the document at path. With isRoot set
// the text is returned as spliced; otherwise the document's leftover
// placeholder tags and comments are removed as well.
func (e *Expander) Expand(path string, isRoot bool) (string, error) {
	root := &models.IncludeNode{Path: path}
	_, text, err := e.expand(path, isRoot, 0, &chain{active: make(map[string]bool)}, root)
	return text, err
}

// ExpandFile expands a root document and also returns its include tree.
func (e *Expander) ExpandFile(path string) (*Result, error) {
	tree := &models.IncludeNode{Path: path}
	raw, text, err := e.expand(path, true, 0, &chain{active: make(map[string]bool)}, tree)
	if err != nil {
		return nil, err
	}

	return &Result{
		Document: models.Document{
			Path:     path,
			Raw:      raw,
			Resolved: text,
			IsRoot:   true,
		},
		Tree: tree,
	}, nil
}

// expand returns the raw and the expanded text of the document at path.
func (e *Expander) expand(path string, isRoot bool, depth int, c *chain, node *models.IncludeNode) (string, string, error) {
	if e.opts.MaxDepth > 0 && depth > e.opts.MaxDepth {
		return "", "", fmt.Errorf("%w (%d) at %s", ErrDepthExceeded, e.opts.MaxDepth, path)
	}

	if e.opts.DetectCycles {
		key := path
		if abs, err := filepath.Abs(path); err == nil {
			key = abs
		}
		if c.active[key] {
			return "", "", fmt.Errorf("%w: %s", ErrCycle, path)
		}
		c.active[key] = true
		defer delete(c.active, key)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	raw := string(data)
	text := raw

	refs := pattern.FindIncludes(text)
	if len(refs) > 0 {
		dir := filepath.Dir(path)
		replacements := make([]string, len(refs))
		for i, ref := range refs {
			candidate := fileutil.ResolveInclude(dir, ref.Ref)
			e.logger.LogDebug(fmt.Sprintf("Resolving %q from %s -> %s", ref.Ref, path, candidate))

			child := &models.IncludeNode{Path: candidate, Ref: ref.Ref}
			node.Children = append(node.Children, child)
			replacements[i] = e.include(candidate, depth+1, c, child)
		}
		text = pattern.Splice(text, refs, replacements)
	}

	if isRoot {
		return raw, text, nil
	}
	return raw, pattern.Clean(text), nil
}

// include produces the replacement for one directive.
func (e *Expander) include(candidate string, depth int, c *chain, node *models.IncludeNode) string {
	if !fileutil.Exists(candidate) {
		node.Status = models.IncludeMissing
		e.logger.LogWarn(fmt.Sprintf("Missing include: %s", candidate))
		return pattern.MissingMarker(candidate)
	}

	_, inner, err := e.expand(candidate, false, depth, c, node)
	if err != nil {
		node.Err = err
		node.Status = models.IncludeFailed
		if errors.Is(err, ErrCycle) {
			node.Status = models.IncludeCycle
		}
		e.logger.LogError(fmt.Sprintf("Error reading include %s: %v", candidate, err))
		return pattern.ErrorMarker(candidate, err)
	}

	node.Status = models.IncludeResolved
	e.logger.LogInfo(fmt.Sprintf("Included: %s", candidate))
	return pattern.Nested(inner)
}
