package display

import (
	"fmt"
	"strings"

	"github.com/disiqueira/gotree/v3"

	"github.com/kvy1/kvy-xmls/internal/models"
)

// IncludeTree renders the include graph below node as a text tree. Paths
// are shown relative to root when possible.
func IncludeTree(node *models.IncludeNode, root string) string {
	return includeTree(node, root, false)
}

// IncludeTreeColor is IncludeTree with unresolved nodes in red.
func IncludeTreeColor(node *models.IncludeNode, root string) string {
	return includeTree(node, root, true)
}

func includeTree(node *models.IncludeNode, root string, enableColor bool) string {
	if node == nil {
		return ""
	}
	bad := painter(enableColor, colorBad)
	tree := gotree.New(relative(root, node.Path))
	addChildren(tree, node, root, bad)
	return tree.Print()
}

func addChildren(parent gotree.Tree, node *models.IncludeNode, root string, bad func(string) string) {
	for _, child := range node.Children {
		branch := parent.Add(nodeLabel(child, root, bad))
		addChildren(branch, child, root, bad)
	}
}

func nodeLabel(n *models.IncludeNode, root string, bad func(string) string) string {
	label := n.Ref
	if label == "" {
		label = relative(root, n.Path)
	}
	switch n.Status {
	case models.IncludeMissing:
		return bad(label + " (missing)")
	case models.IncludeCycle:
		return bad(label + " (cycle)")
	case models.IncludeFailed:
		msg := label + " (failed)"
		if n.Err != nil {
			msg = fmt.Sprintf("%s (failed: %s)", label, strings.TrimSpace(n.Err.Error()))
		}
		return bad(msg)
	}
	return label
}
