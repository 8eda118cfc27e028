// Package safename validates client-supplied folder and file names before they
// are ever turned into filesystem paths. Every path built from user input in
// this codebase goes through this package first; no caller constructs paths by
// string concatenation on raw input.
package safename

import (
	"regexp"
	"strings"
)

// Folder is a validated one-level folder name. The zero value is the event's
// root folder.
type Folder string

// Root is the canonical root folder: files stored directly under files/.
const Root Folder = ""

// folderPattern restricts folder names to letters, digits, spaces and dashes.
var folderPattern = regexp.MustCompile(`^[a-zA-Z0-9 \-]{1,32}$`)

// forbiddenFragments are checked case-insensitively against filenames.
// The percent-encoded variants cover clients that smuggle traversal
// sequences past naive decoders.
var forbiddenFragments = []string{
	"/", "\\", "..",
	"%2f", "%5c", "%2e%2e", "%2e.", ".%2e",
}

// IsSafeFilename reports whether name can be used as a filename inside an
// event folder. Empty names and anything containing path separators, parent
// references or their percent-encoded equivalents are rejected. No extension
// allow-list is applied at this layer.
func IsSafeFilename(name string) bool {
	if name == "" {
		return false
	}
	if strings.ContainsRune(name, 0) {
		return false
	}
	lower := strings.ToLower(name)
	for _, frag := range forbiddenFragments {
		if strings.Contains(lower, frag) {
			return false
		}
	}
	return true
}

// ParseFolder turns raw client input into a Folder. A trimmed empty string is
// the root folder. Any other value must match the restricted folder pattern;
// on a failed match ok is false and callers must treat the input as invalid
// rather than falling back to root.
func ParseFolder(raw string) (Folder, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Root, true
	}
	if !folderPattern.MatchString(trimmed) {
		return Root, false
	}
	return Folder(trimmed), true
}

// IsRoot reports whether f is the event's root folder.
func (f Folder) IsRoot() bool { return f == Root }

// String returns the folder name, empty for root.
func (f Folder) String() string { return string(f) }
