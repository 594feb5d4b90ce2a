package deck

import "strings"

// virtualScheme is the prefix identifying a bundled asset reference
// (spec.md §4.1 step 2, §6 "Bundled virtual paths").
const virtualScheme = "gambit://"

// IsVirtualPath reports whether target names a gambit:// bundled asset
// rather than a filesystem-relative path.
func IsVirtualPath(target string) bool {
	return strings.HasPrefix(target, virtualScheme)
}

// AssetSource resolves gambit:// virtual paths against an in-memory asset
// table populated at construction time (spec.md §6: "resolved against an
// in-memory asset table populated at build time"). Concrete asset content
// (the bundled card/snippet/schema library) is supplied by the caller —
// this runtime only defines the lookup contract.
type AssetSource interface {
	// Asset returns the raw content for a gambit:// URI (everything after
	// the scheme, e.g. "cards/confirm.card.md"), and whether it was found.
	Asset(uri string) (string, bool)
}

// MapAssetSource is a minimal in-memory AssetSource backed by a plain map,
// suitable for tests and for callers that bundle assets at compile time
// (e.g. via go:embed) and hand the runtime a flat map.
type MapAssetSource map[string]string

// Asset implements AssetSource.
func (m MapAssetSource) Asset(uri string) (string, bool) {
	v, ok := m[uri]
	return v, ok
}

// Builtin inline texts substituted for the three special embed targets
// (spec.md §4.1 step 2). These are intentionally terse placeholders: the
// runtime only needs *some* stable text to splice in and a side effect
// (respond=true / allowEnd=true) — the actual prose is a presentation
// concern owned by whoever bundles the real asset table.
const (
	RespondText = "Call gambit_respond with your final structured answer when you are done."
	InitText    = "Begin."
	EndText     = "Call gambit_end to close the conversation."
)

// splitVirtualTarget strips the gambit:// scheme and returns the bare URI
// used to look the asset up, e.g. "gambit://cards/x.card.md" -> "cards/x.card.md".
func splitVirtualTarget(target string) string {
	return strings.TrimPrefix(target, virtualScheme)
}
