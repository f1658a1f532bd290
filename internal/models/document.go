// Package models holds the data types shared by the expander, the batch
// executor, the history store and the CLI.
package models

// Document is a unit of text content identified by its file path.
// A Document is read once, transformed in memory and written once.
type Document struct {
	Path     string // Path the document was read from
	Raw      string // Content as read from storage
	Resolved string // Content after include expansion
	IsRoot   bool   // True when selected directly by the batch driver
}

// IncludeRef is an include directive found in a document's text.
// Start and End are byte offsets of the whole directive in the text it was found in.
type IncludeRef struct {
	Start int
	End   int
	Ref   string // Path attribute as written, trimmed of surrounding whitespace
}

// Include resolution outcomes reported on an IncludeNode.
const (
	IncludeResolved = "resolved" // File existed and was expanded
	IncludeMissing  = "missing"  // Candidate path did not exist
	IncludeFailed   = "failed"   // File existed but expansion failed
	IncludeCycle    = "cycle"    // File is already being expanded higher up the chain
)

// IncludeNode is one node of a traced include graph.
// The root node carries the root document path and an empty Ref.
type IncludeNode struct {
	Path     string         // Resolved candidate path
	Ref      string         // Reference as written in the parent
	Status   string         // One of the Include* constants (empty for the root)
	Err      error          // Failure cause when Status is IncludeFailed or IncludeCycle
	Children []*IncludeNode // Includes found in this file, in document order
}

// Count returns the number of nodes below n with the given status.
func (n *IncludeNode) Count(status string) int {
	if n == nil {
		return 0
	}
	total := 0
	for _, child := range n.Children {
		if child.Status == status {
			total++
		}
		total += child.Count(status)
	}
	return total
}

// Paths returns the distinct paths of the nodes below n with the given
// status, in depth-first document order.
func (n *IncludeNode) Paths(status string) []string {
	var paths []string
	seen := make(map[string]bool)
	var walk func(*IncludeNode)
	walk = func(node *IncludeNode) {
		for _, child := range node.Children {
			if child.Status == status && !seen[child.Path] {
				seen[child.Path] = true
				paths = append(paths, child.Path)
			}
			walk(child)
		}
	}
	if n != nil {
		walk(n)
	}
	return paths
}
