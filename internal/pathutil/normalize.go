// Package pathutil implements the path rules used to infer hierarchy from
// report paths. Report paths come from another machine, so the separator is
// a parameter rather than the host's filepath.Separator.
package pathutil

import "strings"

// DefaultSeparator is the separator used by the reports this tool reads.
const DefaultSeparator = '\\'

// Normalize trims surrounding whitespace and redundant trailing separators.
// A path made only of a volume and separator ("C:\") or a lone separator is
// kept as is.
func Normalize(path string, sep byte) string {
	path = strings.TrimSpace(path)
	for len(path) > 1 && path[len(path)-1] == sep {
		trimmed := path[:len(path)-1]
		if isVolume(trimmed) {
			break
		}
		path = trimmed
	}
	return path
}

// ChildPrefix returns the prefix every descendant of path starts with.
func ChildPrefix(path string, sep byte) string {
	if path != "" && path[len(path)-1] == sep {
		return path
	}
	return path + string(sep)
}

// UpperBound returns the smallest string greater than every string starting
// with prefix when prefix ends with sep, for use in half-open range scans.
func UpperBound(prefix string, sep byte) string {
	if prefix == "" || prefix[len(prefix)-1] != sep {
		return prefix + "\xff"
	}
	return prefix[:len(prefix)-1] + string(sep+1)
}

// IsImmediateChild reports whether child is exactly one segment below parent.
func IsImmediateChild(parent, child string, sep byte) bool {
	prefix := ChildPrefix(parent, sep)
	if len(child) <= len(prefix) || !strings.HasPrefix(child, prefix) {
		return false
	}
	return strings.IndexByte(child[len(prefix):], sep) < 0
}

// Parent returns the path one segment up, or "" when path has no parent.
func Parent(path string, sep byte) string {
	path = Normalize(path, sep)
	i := strings.LastIndexByte(path, sep)
	if i < 0 || i == len(path)-1 {
		return ""
	}
	parent := path[:i]
	if parent == "" || isVolume(parent) {
		return path[:i+1]
	}
	return parent
}

// Base returns the last segment of path.
func Base(path string, sep byte) string {
	path = Normalize(path, sep)
	i := strings.LastIndexByte(path, sep)
	if i < 0 || i == len(path)-1 {
		return path
	}
	return path[i+1:]
}

// isVolume reports whether s is a drive designator such as "C:".
func isVolume(s string) bool {
	return len(s) == 2 && s[1] == ':' &&
		((s[0] >= 'A' && s[0] <= 'Z') || (s[0] >= 'a' && s[0] <= 'z'))
}
