// Package permission implements the monotone intersection algebra over five
// resource classes (read/write/run/net/env) described in spec.md §4.2. It
// normalizes per-layer declarations, resolves an effective set by folding
// layers in order, and answers containment questions with symlink-safe
// canonicalization.
package permission

import (
	"fmt"
)

// Kind enumerates the five resource classes a permission declaration can
// name.
type Kind string

const (
	KindRead  Kind = "read"
	KindWrite Kind = "write"
	KindRun   Kind = "run"
	KindNet   Kind = "net"
	KindEnv   Kind = "env"
)

// ScopeMode distinguishes the three shapes a Scope can take: unrestricted
// (all), empty (none), or an explicit set of tokens (paths for read/write,
// opaque strings for net/env, and the two-axis shape for run).
type ScopeMode int

const (
	ScopeNone ScopeMode = iota
	ScopeAll
	ScopeSet
)

// Scope is a single resource kind's grant within one layer. For read/write
// it holds canonical-absolute path strings; for net/env it holds opaque
// tokens (hostnames, env var names).
type Scope struct {
	Mode ScopeMode
	Set  map[string]struct{}
}

// AllScope returns the unrestricted scope.
func AllScope() Scope { return Scope{Mode: ScopeAll} }

// NoneScope returns the empty scope.
func NoneScope() Scope { return Scope{Mode: ScopeNone} }

// SetScope returns a scope restricted to the given tokens.
func SetScope(tokens ...string) Scope {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return Scope{Mode: ScopeSet, Set: set}
}

// Intersect computes a ∩ b per spec.md §4.2: all∩x=x, none∩x=none,
// set(A)∩set(B)=set(A∩B).
func (a Scope) Intersect(b Scope) Scope {
	if a.Mode == ScopeNone || b.Mode == ScopeNone {
		return NoneScope()
	}
	if a.Mode == ScopeAll {
		return b
	}
	if b.Mode == ScopeAll {
		return a
	}
	out := make(map[string]struct{})
	for k := range a.Set {
		if _, ok := b.Set[k]; ok {
			out[k] = struct{}{}
		}
	}
	return Scope{Mode: ScopeSet, Set: out}
}

// Contains reports whether token is granted directly by this scope (exact
// match only — path descendant matching is handled separately in
// containment.go since it needs canonicalization semantics).
func (s Scope) Contains(token string) bool {
	switch s.Mode {
	case ScopeAll:
		return true
	case ScopeNone:
		return false
	default:
		_, ok := s.Set[token]
		return ok
	}
}

// Tokens returns the explicit members of a ScopeSet scope (empty for
// ScopeAll/ScopeNone).
func (s Scope) Tokens() []string {
	out := make([]string, 0, len(s.Set))
	for k := range s.Set {
		out = append(out, k)
	}
	return out
}

// RunScope is the two-axis scope for the run kind: paths (executable
// files/dirs that may be spawned) and commands (named binaries on PATH)
// intersect independently, per spec.md §4.2.
type RunScope struct {
	// All widens both axes to "all" locally; still narrowed by inner
	// layers during fold (spec.md §4.2: "run = true widens either axis to
	// all locally but is still narrowed by inner layers").
	All      bool
	None     bool
	Paths    Scope
	Commands Scope
}

// AllRunScope returns the unrestricted run scope.
func AllRunScope() RunScope { return RunScope{All: true, Paths: AllScope(), Commands: AllScope()} }

// NoneRunScope returns the empty run scope.
func NoneRunScope() RunScope {
	return RunScope{None: true, Paths: NoneScope(), Commands: NoneScope()}
}

// Intersect computes the two-axis intersection: each axis intersects
// independently.
func (r RunScope) Intersect(o RunScope) RunScope {
	if r.None || o.None {
		return NoneRunScope()
	}
	return RunScope{
		Paths:    r.Paths.Intersect(o.Paths),
		Commands: r.Commands.Intersect(o.Commands),
	}
}

// Set is a single layer's normalized grant across all five kinds, plus the
// BaseDir relative paths in the declaration were resolved against.
type Set struct {
	Name    string // layer name, for Trace (host/workspace/declaration/session/parent/reference)
	BaseDir string
	Read    Scope
	Write   Scope
	Run     RunScope
	Net     Scope
	Env     Scope
}

// Declaration is the raw, unnormalized input for one layer: booleans or
// string lists as authored (front matter, host policy, session override).
type Declaration struct {
	BaseDir string
	Read    any // bool | []string
	Write   any
	Run     any // bool | []string | RunDeclaration
	Net     any
	Env     any
}

// RunDeclaration is the object-form run declaration
// ({paths: [...], commands: [...]}). A boolean paths/commands field inside
// this object form is rejected (spec.md §4.2).
type RunDeclaration struct {
	Paths    any // []string; bool is rejected
	Commands any // []string; bool is rejected
}

// resolvePaths turns a list of path strings into canonical-absolute paths
// joined against baseDir, per spec.md §3 ("Paths are canonicalized
// absolute").
func resolvePaths(baseDir string, raw any) (Scope, error) {
	switch v := raw.(type) {
	case nil:
		return NoneScope(), nil
	case bool:
		if v {
			return AllScope(), nil
		}
		return NoneScope(), nil
	case []string:
		out := make([]string, 0, len(v))
		for _, p := range v {
			out = append(out, canonicalJoin(baseDir, p))
		}
		return SetScope(out...), nil
	default:
		return Scope{}, fmt.Errorf("permission: unsupported path scope value %T", raw)
	}
}

// resolveTokens turns a list of opaque tokens (commands, env names, net
// hosts) into a scope without path resolution.
func resolveTokens(raw any) (Scope, error) {
	switch v := raw.(type) {
	case nil:
		return NoneScope(), nil
	case bool:
		if v {
			return AllScope(), nil
		}
		return NoneScope(), nil
	case []string:
		return SetScope(v...), nil
	default:
		return Scope{}, fmt.Errorf("permission: unsupported token scope value %T", raw)
	}
}

// Normalize converts a raw Declaration into a Set, resolving relative paths
// against d.BaseDir and defaulting unspecified kinds to none when any kind
// in the layer is specified (spec.md §3). A declaration that specifies no
// kind at all does not narrow: every kind is all.
func Normalize(name string, d Declaration) (Set, error) {
	if d.Read == nil && d.Write == nil && d.Run == nil && d.Net == nil && d.Env == nil {
		return Set{Name: name, BaseDir: d.BaseDir, Read: AllScope(), Write: AllScope(), Run: AllRunScope(), Net: AllScope(), Env: AllScope()}, nil
	}
	read, err := resolvePaths(d.BaseDir, d.Read)
	if err != nil {
		return Set{}, fmt.Errorf("%s.read: %w", name, err)
	}
	write, err := resolvePaths(d.BaseDir, d.Write)
	if err != nil {
		return Set{}, fmt.Errorf("%s.write: %w", name, err)
	}
	net, err := resolveTokens(d.Net)
	if err != nil {
		return Set{}, fmt.Errorf("%s.net: %w", name, err)
	}
	env, err := resolveTokens(d.Env)
	if err != nil {
		return Set{}, fmt.Errorf("%s.env: %w", name, err)
	}
	run, err := normalizeRun(d.BaseDir, d.Run)
	if err != nil {
		return Set{}, fmt.Errorf("%s.run: %w", name, err)
	}
	return Set{Name: name, BaseDir: d.BaseDir, Read: read, Write: write, Run: run, Net: net, Env: env}, nil
}

func normalizeRun(baseDir string, raw any) (RunScope, error) {
	switch v := raw.(type) {
	case nil:
		return NoneRunScope(), nil
	case bool:
		if v {
			return AllRunScope(), nil
		}
		return NoneRunScope(), nil
	case RunDeclaration:
		if _, ok := v.Paths.(bool); ok {
			return RunScope{}, fmt.Errorf("object-form run.paths must be a path list, not a boolean")
		}
		if _, ok := v.Commands.(bool); ok {
			return RunScope{}, fmt.Errorf("object-form run.commands must be a command list, not a boolean")
		}
		paths, err := resolvePaths(baseDir, v.Paths)
		if err != nil {
			return RunScope{}, err
		}
		commands, err := resolveTokens(v.Commands)
		if err != nil {
			return RunScope{}, err
		}
		return RunScope{Paths: paths, Commands: commands}, nil
	default:
		return RunScope{}, fmt.Errorf("unsupported run scope value %T", raw)
	}
}
