// Package pattern provides the stateless text rules used to compile documents.
//
// Every function takes a complete in-memory buffer and returns a rewritten
// buffer. The rules are:
//
//   - Include directive: <!-- #include file="relative/path" -->
//   - Placeholder block: <placeholder attrs>content</placeholder>, tag name
//     matched case-insensitively, unwrapped to bare content
//   - Comment block: <!-- ... --> spanning lines, matched non-greedily, deleted
//   - Whitespace run: two or more whitespace characters, collapsed to one space
//
// Include directives are themselves comments, so callers must locate them with
// FindIncludes before any call to StripComments.
package pattern
