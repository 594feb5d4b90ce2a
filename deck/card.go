package deck

import "github.com/bolt-foundry/gambit/schema"

// Card is an embeddable document (spec.md §3 "Loaded card"). Fragments are
// partial schemas that merge structurally into a parent deck's schema.
type Card struct {
	Path               string
	Body               string
	Respond            bool
	AllowEnd           bool
	ActionRefs         []Ref
	TestRefs           []Ref
	GraderRefs         []Ref
	Cards              []*Card
	ContextFragment    map[string]any
	ResponseFragment   map[string]any
}

// mergeFragment structurally unions src into dst by object-field union,
// with later fragments winning on key collision (spec.md §4.1 step 5).
// dst may be nil, in which case a new map is allocated.
func mergeFragment(dst, src map[string]any) map[string]any {
	if src == nil {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// ensureSchemaDoc coerces a loaded schema's JSON representation (or a card
// fragment) to its whole top-level map[string]any document, suitable for
// mergeFragment, falling back to an empty object for nil input or a
// non-object representation.
func ensureSchemaDoc(s schema.Schema) map[string]any {
	if s == nil {
		return map[string]any{}
	}
	if doc, ok := s.JSONSchema().(map[string]any); ok {
		return doc
	}
	return map[string]any{}
}
