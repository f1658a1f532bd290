// Package fileutil provides file discovery and include path resolution.
//
// # Discovery
//
// ScanDirectory walks a directory with depth bounds, a file name regex,
// extension filters and directory exclusion. Hidden directories (names
// starting with ".") are always skipped. Non-fatal errors such as an
// unreadable subdirectory are collected in ScanResult.Errors and scanning
// continues; only a missing root or an invalid regex fails the scan.
// Results are absolute paths sorted alphabetically.
//
// Root documents live exactly two levels below the input root:
//
//	result, err := fileutil.FindCandidates(root, fileutil.CandidatePattern, "compiled")
//
// selects root/KFM/1_main.xml but never root/1_main.xml or
// root/KFM/extra/1_main.xml.
//
// # Include resolution
//
// ResolveInclude turns the path attribute of an include directive into a
// candidate path relative to the including document's own directory, never
// the process working directory. Backslash separators are converted on
// platforms that do not use them natively. Existence is checked separately
// with Exists.
package fileutil
