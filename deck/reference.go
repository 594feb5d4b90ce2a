// Package deck implements the deck loader (spec.md §4.1): front-matter
// parsing, embed expansion, schema resolution, fragment merging, tool-name
// validation, and cycle detection.
package deck

// Ref identifies either a prompt file (PROMPT.md) or a native-executor
// module (spec.md §3 "Deck reference"). Path is stored resolved (absolute)
// relative to its owner.
type Ref struct {
	Path        string
	Name        string
	Label       string
	Description string
	ID          string
}
