package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Adapter wraps santhosh-tekuri/jsonschema/v6 to satisfy Schema. It is the
// default implementation a deck's contextSchema/responseSchema resolves to
// when the schema reference points at a plain JSON Schema document, rather
// than a caller-supplied hand-written Schema implementation.
type Adapter struct {
	compiled *jsonschema.Schema
	raw      map[string]any
}

// NewAdapter compiles a JSON Schema document (already decoded into a
// map[string]any, e.g. from a *.schema.json file or an inline literal) into
// an Adapter. Returns an error if the document fails to compile.
func NewAdapter(name string, doc map[string]any) (*Adapter, error) {
	compiler := jsonschema.NewCompiler()
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode schema %q: %w", name, err)
	}
	res, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode schema %q: %w", name, err)
	}
	if err := compiler.AddResource(name, res); err != nil {
		return nil, fmt.Errorf("add schema resource %q: %w", name, err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %q: %w", name, err)
	}
	return &Adapter{compiled: compiled, raw: doc}, nil
}

// Parse validates input (typically already JSON-decoded) against the
// compiled schema and returns it unchanged on success.
func (a *Adapter) Parse(input any) (any, error) {
	if err := a.compiled.Validate(input); err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}
	return input, nil
}

// JSONSchema returns the original decoded document for structural equality
// checks via Equal.
func (a *Adapter) JSONSchema() any { return a.raw }
