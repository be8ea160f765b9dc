package edge

import (
	"errors"
	"path/filepath"
	"strings"
)

// Resolver rejection reasons. Callers map any of these to a 403.
var (
	// ErrTraversal marks a relative path carrying a ".." segment.
	ErrTraversal = errors.New("path traversal detected")
	// ErrBadComponent marks a path component that is neither a plain name
	// nor the current-directory marker (absolute paths, volume prefixes).
	ErrBadComponent = errors.New("invalid path component")
	// ErrEscapesRoot marks a candidate whose canonical form leaves the root.
	ErrEscapesRoot = errors.New("resolved path escapes root")
)

// ResolveWithinRoot joins rel onto root, guaranteeing the result cannot
// escape root. The ".." check is purely string-level and runs before any
// filesystem access, so traversal attempts never reach the disk.
func ResolveWithinRoot(root, rel string) (string, error) {
	if hasDotDotSegment(rel) {
		return "", ErrTraversal
	}

	resolved := root
	if rel != "" {
		if filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
			return "", ErrBadComponent
		}
		for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
			switch seg {
			case "", ".":
				// contributes nothing
			case "..":
				return "", ErrTraversal
			default:
				resolved = filepath.Join(resolved, seg)
			}
		}
	}

	// Defense in depth: when both sides exist, canonicalize and require the
	// candidate to stay under the root. A not-yet-existing candidate (SPA
	// fallback targets) skips this and relies on the segment checks above.
	rootCanon, rootErr := filepath.EvalSymlinks(root)
	candCanon, candErr := filepath.EvalSymlinks(resolved)
	if rootErr == nil && candErr == nil {
		if candCanon != rootCanon && !strings.HasPrefix(candCanon, rootCanon+string(filepath.Separator)) {
			return "", ErrEscapesRoot
		}
	}

	return resolved, nil
}

// hasDotDotSegment reports whether any slash-separated segment of p is "..".
func hasDotDotSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
