package reactive

import (
	"strconv"
	"strings"
)

// Paths address locations inside wrapped data as dot-joined segment
// strings, e.g. "user.address.city" or "items.3.label". Path strings are
// the sole addressing mechanism between the store, the registry, and the
// scheduler, so two logically equal segment sequences always render to
// the same string.

// Join renders a sequence of segments as a canonical path string.
// Empty segments are skipped so Join("", "user") == "user".
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s == "" {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ".")
}

// Child returns the path of a property under parent.
// A root parent is the empty string.
func Child(parent, segment string) string {
	if parent == "" {
		return segment
	}
	return parent + "." + segment
}

// Split breaks a path into its segments. The empty path has no segments.
func Split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Index renders a numeric slice index as a path segment.
func Index(i int) string {
	return strconv.Itoa(i)
}

// Match reports whether path matches pattern. A "*" segment matches any
// single segment; a trailing "**" segment matches any remainder,
// including none. Patterns without wildcards match exactly.
func Match(pattern, path string) bool {
	if pattern == path {
		return true
	}
	ps := Split(pattern)
	ts := Split(path)
	for i, seg := range ps {
		if seg == "**" && i == len(ps)-1 {
			return true
		}
		if i >= len(ts) {
			return false
		}
		if seg != "*" && seg != ts[i] {
			return false
		}
	}
	return len(ps) == len(ts)
}

// isPattern reports whether a subscription path contains wildcards and
// therefore needs Match instead of exact lookup.
func isPattern(path string) bool {
	return strings.Contains(path, "*")
}
