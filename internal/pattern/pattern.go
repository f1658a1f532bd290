package pattern

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kvy1/kvy-xmls/internal/models"
)

var (
	includeRe     = regexp.MustCompile(`<!--\s*#include\s+file="(.*?)"\s*-->`)
	placeholderRe = regexp.MustCompile(`(?is)<placeholder(?:\s[^>]*)?>(.*?)</placeholder\s*>`)
	commentRe     = regexp.MustCompile(`(?s)<!--.*?-->`)
	whitespaceRe  = regexp.MustCompile(`\s{2,}`)
	cdataRe       = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
)

// FindIncludes returns every include directive in text, left to right.
// Matches never overlap and offsets refer to text as passed in.
func FindIncludes(text string) []models.IncludeRef {
	matches := includeRe.FindAllStringSubmatchIndex(text, -1)
	refs := make([]models.IncludeRef, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, models.IncludeRef{
			Start: m[0],
			End:   m[1],
			Ref:   strings.TrimSpace(text[m[2]:m[3]]),
		})
	}
	return refs
}

// Splice builds a new buffer from text with each directive span replaced by the
// replacement at the same index. Replacement text is never rescanned.
func Splice(text string, refs []models.IncludeRef, replacements []string) string {
	if len(refs) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for i, ref := range refs {
		b.WriteString(text[last:ref.Start])
		if i < len(replacements) {
			b.WriteString(replacements[i])
		}
		last = ref.End
	}
	b.WriteString(text[last:])
	return b.String()
}

// UnwrapPlaceholders removes placeholder tags and keeps their content.
// Nested placeholder blocks are unwrapped until none remain.
func UnwrapPlaceholders(text string) string {
	for {
		next := placeholderRe.ReplaceAllString(text, "$1")
		if next == text {
			return next
		}
		text = next
	}
}

// StripComments deletes every comment span, including ones that span lines.
func StripComments(text string) string {
	return commentRe.ReplaceAllString(text, "")
}

// Flatten removes every newline and carriage return, then collapses the
// remaining whitespace runs to a single space. LF and CRLF input flatten
// to the same line.
func Flatten(text string) string {
	joined := strings.NewReplacer("\r", "", "\n", "").Replace(text)
	return whitespaceRe.ReplaceAllString(joined, " ")
}

// Clean applies the cleanup a nested document performs on its own text:
// placeholder unwrapping followed by comment stripping.
func Clean(text string) string {
	return StripComments(UnwrapPlaceholders(text))
}

// Nested prepares a nested document's cleaned text for splicing into its parent.
func Nested(text string) string {
	return Flatten(Clean(text))
}

// MissingMarker is substituted for a directive whose file does not exist.
func MissingMarker(path string) string {
	return fmt.Sprintf("<!-- Include not found: %s -->", path)
}

// ErrorMarker is substituted for a directive whose file could not be expanded.
func ErrorMarker(path string, err error) string {
	msg := strings.ReplaceAll(err.Error(), "--", "- -")
	return fmt.Sprintf("<!-- Include error: %s: %s -->", path, msg)
}

// WrapPlaceholders turns each remaining placeholder block into a CDATA section.
// CDATA markers already inside the block are dropped so sections never nest.
func WrapPlaceholders(text string) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(block string) string {
		inner := placeholderRe.FindStringSubmatch(block)[1]
		return "\n" + cdata(inner)
	})
}

// WrapDocument wraps the whole text in a single CDATA section.
func WrapDocument(text string) string {
	return cdata(text)
}

func cdata(inner string) string {
	inner = cdataRe.ReplaceAllString(strings.TrimSpace(inner), "$1")
	return "<![CDATA[\n" + inner + "\n]]>"
}
