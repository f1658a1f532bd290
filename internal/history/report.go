package history

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Report formats
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// ValidFormat reports whether format is a supported report format.
func ValidFormat(format string) bool {
	switch format {
	case FormatText, FormatMarkdown, FormatHTML:
		return true
	}
	return false
}

// Report renders runs and, optionally, the file records of a single run.
type Report struct {
	Runs  []*Run
	Files []*FileRecord // Files of Runs[0]; nil for a run listing
}

// Render writes the report to w in the given format.
func (r *Report) Render(w io.Writer, format string) error {
	switch format {
	case FormatText:
		return r.renderText(w)
	case FormatMarkdown:
		_, err := io.WriteString(w, r.Markdown())
		return err
	case FormatHTML:
		return r.renderHTML(w)
	default:
		return fmt.Errorf("unknown report format %q, must be one of: text, markdown, html", format)
	}
}

func (r *Report) renderText(w io.Writer) error {
	if len(r.Runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tFILES\tCOMPILED\tFAILED\tSKIPPED\tDURATION\tROOT")
	for _, run := range r.Runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			shortID(run.ID), run.StartedAt.Local().Format(time.DateTime),
			run.TotalFiles, run.Compiled, run.Failed, run.Skipped, run.Duration, run.Root)
	}
	if r.Files != nil {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "SOURCE\tSTATUS\tCHANGED\tINCLUDES\tMISSING\tSHA256\tERROR")
		for _, f := range r.Files {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
				f.Source, f.Status, yesNo(f.Changed), f.Includes, f.Missing, shortDigest(f.SHA256), f.ErrorMessage)
		}
	}
	return tw.Flush()
}

// Markdown returns the report as a GitHub-flavoured markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# Compile history\n\n")
	if len(r.Runs) == 0 {
		b.WriteString("No runs recorded.\n")
		return b.String()
	}

	b.WriteString("| Run | Started | Files | Compiled | Failed | Skipped | Duration |\n")
	b.WriteString("|-----|---------|------:|---------:|-------:|--------:|----------|\n")
	for _, run := range r.Runs {
		fmt.Fprintf(&b, "| `%s` | %s | %d | %d | %d | %d | %s |\n",
			shortID(run.ID), run.StartedAt.Local().Format(time.DateTime),
			run.TotalFiles, run.Compiled, run.Failed, run.Skipped, run.Duration)
	}

	if r.Files != nil {
		fmt.Fprintf(&b, "\n## Files of run `%s`\n\n", r.Runs[0].ID)
		b.WriteString("| File | Status | Changed | Includes | Missing | SHA-256 |\n")
		b.WriteString("|------|--------|---------|---------:|--------:|---------|\n")
		for _, f := range r.Files {
			fmt.Fprintf(&b, "| %s | %s | %s | %d | %d | `%s` |\n",
				escapeCell(relativeTo(r.Runs[0].Root, f.Source)), f.Status, yesNo(f.Changed),
				f.Includes, f.Missing, shortDigest(f.SHA256))
		}

		var failures []*FileRecord
		for _, f := range r.Files {
			if f.ErrorMessage != "" {
				failures = append(failures, f)
			}
		}
		if len(failures) > 0 {
			b.WriteString("\n### Errors\n\n")
			for _, f := range failures {
				fmt.Fprintf(&b, "- **%s**: %s\n", escapeCell(relativeTo(r.Runs[0].Root, f.Source)), escapeCell(f.ErrorMessage))
			}
		}
	}
	return b.String()
}

func (r *Report) renderHTML(w io.Writer) error {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert([]byte(r.Markdown()), &buf); err != nil {
		return fmt.Errorf("convert markdown: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	if digest == "" {
		return "-"
	}
	return digest
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func relativeTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return path
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\n", " ", "<", "&lt;", ">", "&gt;")

func escapeCell(s string) string {
	return cellEscaper.Replace(s)
}
