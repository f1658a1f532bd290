package display

import (
	"fmt"
	"io"
	"path/filepath"
)

// CandidateList prints the files a batch would compile, one step per file,
// followed by a closing count. Used by dry runs.
type CandidateList struct {
	writer io.Writer
	root   string
	total  int
	step   int
	paint  func(string) string
	ok     func(string) string
}

// NewCandidateList creates a list for total candidates below root.
func NewCandidateList(w io.Writer, root string, total int) *CandidateList {
	return newCandidateList(w, root, total, IsTerminal(w))
}

func newCandidateList(w io.Writer, root string, total int, enableColor bool) *CandidateList {
	return &CandidateList{
		writer: w,
		root:   root,
		total:  total,
		paint:  painter(enableColor, colorStep),
		ok:     painter(enableColor, colorOK),
	}
}

// Start displays the header line.
func (c *CandidateList) Start() {
	fmt.Fprintf(c.writer, "Source files in %s:\n", c.root)
}

// Step displays one candidate as: [N/Total] relative/source -> output
func (c *CandidateList) Step(source, output string) {
	c.step++
	line := fmt.Sprintf("  [%d/%d] %s -> %s", c.step, c.total, relative(c.root, source), filepath.Base(output))
	fmt.Fprintln(c.writer, c.paint(line))
}

// Complete displays the closing count.
func (c *CandidateList) Complete() {
	noun := "files"
	if c.total == 1 {
		noun = "file"
	}
	fmt.Fprintln(c.writer, c.ok(fmt.Sprintf("%d %s would be compiled", c.total, noun)))
}
