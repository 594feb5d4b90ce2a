// Package schema defines the structural contract this runtime needs from an
// external schema validator (spec.md §1: "schema validator library... we
// require only a parse(unknown) -> T | error and structural equality on its
// JSON projection"). It also ships a default adapter backed by
// santhosh-tekuri/jsonschema/v6, the package the teacher uses for the same
// purpose in its tool-payload validation path.
package schema

import (
	"encoding/json"
	"sort"
)

// Schema parses an arbitrary value (already JSON-decoded or a raw string)
// into a validated value, or returns an error describing the violation.
// Deck context/response schemas and executor-declared schemas both satisfy
// this interface.
type Schema interface {
	// Parse validates input against the schema and returns the accepted
	// value (typically input itself, coerced) or an error.
	Parse(input any) (any, error)

	// JSONSchema returns the schema's own JSON Schema representation, used
	// only for the structural-equality check in Equal. Implementations that
	// cannot produce one (e.g. a hand-rolled Go-struct-backed schema) may
	// return nil; Equal treats two nil representations as equal and a nil
	// against a non-nil one as unequal.
	JSONSchema() any
}

// Equal reports whether two schemas are structurally equal under sorted-key
// JSON projection, per spec.md §9 ("normalized-JSON projection... avoid deep
// schema introspection"). This is the check used when a deck declares a
// contextSchema/responseSchema that must match what its executor module
// independently declares (spec.md §3 invariant).
func Equal(a, b Schema) bool {
	if a == nil || b == nil {
		return a == b
	}
	aj, bj := a.JSONSchema(), b.JSONSchema()
	if aj == nil || bj == nil {
		return aj == nil && bj == nil
	}
	an, err1 := normalizeJSON(aj)
	bn, err2 := normalizeJSON(bj)
	if err1 != nil || err2 != nil {
		return false
	}
	return an == bn
}

// normalizeJSON renders v as JSON with object keys sorted recursively,
// preserving array order (spec.md §9: "recursive sort by key, canonical
// array order preserved"). The result is suitable for string equality.
func normalizeJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", err
	}
	normalized := sortKeys(decoded)
	out, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// sortKeys recursively rebuilds maps into a key-sorted representation.
// json.Marshal already sorts map[string]any keys, but we make the
// projection's idempotence (spec.md §8) explicit and independent of that
// encoding detail by rebuilding with an ordered structure ourselves.
func sortKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(orderedObject, 0, len(keys))
		for _, k := range keys {
			out = append(out, orderedField{Key: k, Value: sortKeys(val[k])})
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sortKeys(item)
		}
		return out
	default:
		return val
	}
}

// orderedField and orderedObject implement a deterministic, key-sorted JSON
// object encoding (encoding/json has no ordered-map type).
type orderedField struct {
	Key   string
	Value any
}

type orderedObject []orderedField

func (o orderedObject) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, f := range o {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	buf = append(buf, '}')
	return buf, nil
}
