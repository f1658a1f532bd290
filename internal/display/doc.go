// Package display renders user-facing terminal output for the xmlc CLI:
// warnings, include trees and candidate listings.
//
// Warnings carry optional components:
//
//	warning := display.Warning{
//	    Title:      "Output collision",
//	    Message:    "2 sources compile to 1_a.xml",
//	    Files:      []string{"a/1_a.xml", "b/1_a.xml"},
//	    Suggestion: "Rename one of the sources",
//	}
//	warning.Display(os.Stderr)
//
// Include trees are drawn with gotree:
//
//	fmt.Print(display.IncludeTree(node, root))
//
// Color is only emitted when the writer is a terminal, unless forced with
// the *Color variants.
package display

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether w is a terminal that should receive color.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func painter(enabled bool, attrs ...color.Attribute) func(string) string {
	c := color.New(attrs...)
	if enabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return func(s string) string { return c.Sprint(s) }
}

const (
	colorWarning = color.FgYellow
	colorStep    = color.FgCyan
	colorOK      = color.FgGreen
	colorBad     = color.FgRed
)
