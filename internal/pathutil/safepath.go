// Package pathutil validates relative references before they are joined
// onto URLs or file systems.
package pathutil

import "strings"

// HasDotSegments reports whether any path segment is "." or "..".
func HasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// CleanRef normalizes a media or asset reference into a relative slash path.
// Leading slashes and surrounding whitespace are dropped and repeated slashes
// collapsed. ok is false for empty references and for ones containing NUL,
// backslashes or dot segments.
func CleanRef(ref string) (clean string, ok bool) {
	ref = strings.TrimLeft(strings.TrimSpace(ref), "/")
	if ref == "" || strings.ContainsAny(ref, "\x00\\") || HasDotSegments(ref) {
		return "", false
	}
	parts := strings.Split(ref, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return "", false
	}
	return strings.Join(out, "/"), true
}
