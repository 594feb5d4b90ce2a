package permission

import (
	"os"
	"path/filepath"
	"strings"
)

// canonicalJoin resolves a declared path string against baseDir into an
// absolute, lexically-clean path, without touching the filesystem (the
// target need not exist yet when a scope is declared). Containment checks
// (CanRead etc.) perform the filesystem-aware symlink resolution at check
// time, since the target may not have existed when the scope was
// normalized.
func canonicalJoin(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(baseDir, p))
}

// canonicalize resolves p the way containment checks require: every
// existing ancestor directory component has its symlinks resolved: trailing
// components that do not yet exist keep their syntactic form appended to
// the resolved existing prefix (spec.md §4.2: "resolve symlinks in all
// ancestors that exist; unresolved components keep their syntactic form").
func canonicalize(p string) string {
	p = filepath.Clean(p)
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	// p (or some component) doesn't exist yet. Walk up to find the longest
	// existing ancestor, resolve that, and re-append the remainder.
	dir, base := filepath.Dir(p), filepath.Base(p)
	if dir == p {
		// reached filesystem root without finding an existing component
		return p
	}
	resolvedDir := canonicalize(dir)
	return filepath.Join(resolvedDir, base)
}

// isDescendant reports whether child is equal to root or a path
// lexically/structurally below it, after both have been cleaned to
// absolute form. Both inputs are expected to already be canonicalized by
// the caller.
func isDescendant(root, child string) bool {
	root = filepath.Clean(root)
	child = filepath.Clean(child)
	if root == child {
		return true
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(child, root)
}
