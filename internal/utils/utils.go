// Package utils contains general helper functions used across ltree.
package utils

import (
	"path/filepath"
	"strings"
)

// Ignore file constants used across the project.
const (
	// IgnoreFileName is the name of the project's ignore file.
	IgnoreFileName = ".ignore"
	// GitIgnoreFileName is the name of the Git ignore file.
	GitIgnoreFileName = ".gitignore"
	// GitDirectoryName is the name of the Git repository directory.
	GitDirectoryName = ".git"
)

const pathSegmentSeparator = "/"

// DeduplicatePatterns returns patterns without repeats, keeping the first
// occurrence of each. The result is never nil.
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]struct{}, len(patterns))
	unique := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if _, duplicate := seen[pattern]; duplicate {
			continue
		}
		seen[pattern] = struct{}{}
		unique = append(unique, pattern)
	}
	return unique
}

// RelativePathOrSelf returns fullPath relative to root in forward-slash form,
// "." for the root itself, or the cleaned fullPath when no relative form
// exists.
func RelativePathOrSelf(fullPath, root string) string {
	cleanPath := filepath.Clean(fullPath)
	absoluteRoot, absoluteError := filepath.Abs(root)
	if absoluteError != nil {
		return cleanPath
	}
	relativePath, relativeError := filepath.Rel(absoluteRoot, cleanPath)
	if relativeError != nil {
		return cleanPath
	}
	return filepath.ToSlash(relativePath)
}

// JoinRelative appends name to a forward-slash relative path, treating "." as the root.
func JoinRelative(relativeParent, name string) string {
	if relativeParent == "" || relativeParent == "." {
		return name
	}
	return relativeParent + pathSegmentSeparator + name
}

// SubtreeKey returns the first segment of a forward-slash relative path.
// The root itself maps to the empty key.
func SubtreeKey(relativePath string) string {
	normalized := strings.ReplaceAll(relativePath, "\\", pathSegmentSeparator)
	if normalized == "" || normalized == "." {
		return ""
	}
	if index := strings.Index(normalized, pathSegmentSeparator); index >= 0 {
		return normalized[:index]
	}
	return normalized
}

// IsHiddenName reports whether a file name is a dot-file.
func IsHiddenName(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
