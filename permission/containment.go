package permission

// Checker answers containment questions against a resolved effective Set.
// Constructing one is cheap; it holds no state beyond the Set itself.
type Checker struct {
	set Set
}

// NewChecker wraps an effective Set for containment queries.
func NewChecker(set Set) *Checker { return &Checker{set: set} }

// CanRead reports whether p is readable under the effective set.
// Canonicalization resolves symlinks in existing ancestors; if the
// canonical form escapes every granted root, access is denied even though
// the syntactic path looked contained (spec.md §4.2 "symlink escape").
func (c *Checker) CanRead(p string) bool {
	return scopeContainsPath(c.set.Read, resolveRelative(c.set.BaseDir, p))
}

// CanWrite reports whether p is writable under the effective set.
func (c *Checker) CanWrite(p string) bool {
	return scopeContainsPath(c.set.Write, resolveRelative(c.set.BaseDir, p))
}

// CanRunPath reports whether the executable at p may be spawned under the
// effective set's run.paths axis.
func (c *Checker) CanRunPath(p string) bool {
	if c.set.Run.None {
		return false
	}
	if c.set.Run.All {
		return true
	}
	return scopeContainsPath(c.set.Run.Paths, resolveRelative(c.set.BaseDir, p))
}

// CanRunCommand reports whether the named command may be spawned under the
// effective set's run.commands axis. Commands are opaque tokens, not paths,
// so no canonicalization applies.
func (c *Checker) CanRunCommand(cmd string) bool {
	if c.set.Run.None {
		return false
	}
	if c.set.Run.All {
		return true
	}
	return c.set.Run.Commands.Contains(cmd)
}

// CanAccessNet reports whether host is reachable under the effective net
// scope.
func (c *Checker) CanAccessNet(host string) bool {
	return c.set.Net.Contains(host)
}

// CanReadEnv reports whether the named environment variable is exposed
// under the effective env scope.
func (c *Checker) CanReadEnv(name string) bool {
	return c.set.Env.Contains(name)
}

// resolveRelative resolves a relative input against the layer's own
// baseDir — never a parent's, per spec.md §4.2 ("Relative inputs are
// resolved against the layer's own baseDir... a child with no declaration
// of its own resolves against the child's baseDir using the parent's
// granted set").
func resolveRelative(baseDir, p string) string {
	return canonicalJoin(baseDir, p)
}

// scopeContainsPath reports whether the canonical form of p is granted by
// scope: either an exact match of a granted path, or a proper descendant
// whose parent chain crosses a granted directory. Canonicalization resolves
// existing ancestors' symlinks; if that moves p outside every granted root,
// access is denied.
func scopeContainsPath(scope Scope, p string) bool {
	switch scope.Mode {
	case ScopeAll:
		return true
	case ScopeNone:
		return false
	}
	canonical := canonicalize(p)
	for granted := range scope.Set {
		canonicalGranted := canonicalize(granted)
		if isDescendant(canonicalGranted, canonical) {
			return true
		}
	}
	return false
}
