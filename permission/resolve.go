package permission

// TraceEntry records one layer's contribution to an effective resolution,
// for the auditability spec.md §4.2 requires ("every resolution returns an
// ordered list of {name, baseDir, scope-per-kind}").
type TraceEntry struct {
	Name    string
	BaseDir string
	Read    Scope
	Write   Scope
	Run     RunScope
	Net     Scope
	Env     Scope
}

// Resolution is the result of folding a chain of layers: the final
// effective Set plus the ordered Trace of every layer that contributed.
type Resolution struct {
	Effective Set
	Trace     []TraceEntry
}

func traceOf(s Set) TraceEntry {
	return TraceEntry{Name: s.Name, BaseDir: s.BaseDir, Read: s.Read, Write: s.Write, Run: s.Run, Net: s.Net, Env: s.Env}
}

// foldLeft intersects layers in the given order, left to right, recording
// each step in the trace. The first layer seeds the accumulator; host is
// expected to already be "all" for every kind per spec.md §4.2 ("host is
// implicitly all for unspecified kinds").
func foldLeft(layers []Set) Resolution {
	if len(layers) == 0 {
		return Resolution{Effective: Set{Read: NoneScope(), Write: NoneScope(), Run: NoneRunScope(), Net: NoneScope(), Env: NoneScope()}}
	}
	acc := layers[0]
	trace := []TraceEntry{traceOf(acc)}
	for _, l := range layers[1:] {
		acc = Set{
			Name:    l.Name,
			BaseDir: l.BaseDir,
			Read:    acc.Read.Intersect(l.Read),
			Write:   acc.Write.Intersect(l.Write),
			Run:     acc.Run.Intersect(l.Run),
			Net:     acc.Net.Intersect(l.Net),
			Env:     acc.Env.Intersect(l.Env),
		}
		trace = append(trace, traceOf(l))
	}
	return Resolution{Effective: acc, Trace: trace}
}

// ResolveRoot resolves the effective permission set for a root deck by
// folding host, workspace, declaration, session layers left to right, per
// spec.md §4.2. Each Set's Name field is overwritten with its layer name
// ("host", "workspace", "declaration", "session") for the trace.
func ResolveRoot(host, workspace, declaration, session Set) Resolution {
	host.Name, workspace.Name, declaration.Name, session.Name = "host", "workspace", "declaration", "session"
	return foldLeft([]Set{host, workspace, declaration, session})
}

// ResolveChild resolves the effective permission set for a nested deck
// invocation by folding parent, declaration, reference layers left to
// right, per spec.md §4.2. "reference" is the parent's declared narrowing
// of what it grants this specific child (e.g. an action's own permission
// overrides).
func ResolveChild(parent, declaration, reference Set) Resolution {
	parent.Name, declaration.Name, reference.Name = "parent", "declaration", "reference"
	return foldLeft([]Set{parent, declaration, reference})
}
