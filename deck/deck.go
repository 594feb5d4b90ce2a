package deck

import (
	"regexp"
	"strings"

	"github.com/bolt-foundry/gambit/gambiterr"
	"github.com/bolt-foundry/gambit/permission"
	"github.com/bolt-foundry/gambit/schema"
)

// toolNamePattern is the identifier grammar spec.md §3 requires for every
// action name.
var toolNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reservedBuiltinTools are the only gambit_-prefixed action names a deck
// may declare (spec.md §3).
var reservedBuiltinTools = map[string]struct{}{
	"gambit_context":  {},
	"gambit_init":     {},
	"gambit_respond":  {},
	"gambit_complete": {},
	"gambit_end":      {},
}

// StartMode controls whether a deck is allowed to run as the root of an
// invocation or only as a nested action.
type StartMode string

// Deck is the resolved, validated representation of a deck source
// (spec.md §3 "Loaded deck").
type Deck struct {
	Path            string
	Body            string
	Label           string
	StartMode       StartMode
	ModelParams     map[string]any
	Guardrails      *Guardrails
	Actions         []ActionDecl
	TestDecks       []Ref
	GraderDecks     []Ref
	Cards           []*Card
	ContextSchema  schema.Schema
	ResponseSchema schema.Schema
	Executor       *ExecutorModule
	Handlers       *Handlers
	Respond        bool
	AllowEnd       bool
	Permissions    *permission.Declaration

	// IsRoot is true when this deck was loaded as the entry point of an
	// invocation rather than as a nested action (spec.md §3: "Non-root
	// decks must declare both contextSchema and responseSchema").
	IsRoot bool

	// Warnings accumulates one-shot, non-fatal diagnostics produced while
	// loading (legacy aliases, executor/modelParams conflicts, schema
	// mismatches pre-1.0).
	Warnings []string
}

// ActionDecl is one entry in a deck's [[actions]] block: a callable tool
// backed by either a nested deck (Path) or a native executor (Execute).
type ActionDecl struct {
	Name        string
	Description string
	Ref         Ref
	Execute     string // path to a native-executor module, mutually exclusive with Ref.Path
	Parallel    bool
	Permissions *permission.Declaration // the "reference" layer for this child (spec.md §4.2)
}

func (d *Deck) warn(msg string) {
	d.Warnings = append(d.Warnings, msg)
}

// Validate enforces spec.md §3's invariants over an assembled Deck. It is
// called once, after all embeds/fragments/schemas have been resolved, so
// that validation sees the deck's final shape.
func (d *Deck) Validate() error {
	seen := make(map[string]struct{}, len(d.Actions))
	for _, a := range d.Actions {
		if err := validateActionName(a.Name); err != nil {
			return err
		}
		if _, dup := seen[a.Name]; dup {
			return gambiterr.Errorf(gambiterr.ToolNameCollision, "duplicate action name %q in deck %s", a.Name, d.Path)
		}
		seen[a.Name] = struct{}{}

		hasPath := a.Ref.Path != ""
		hasExecute := a.Execute != ""
		if hasPath == hasExecute {
			return gambiterr.Errorf(gambiterr.ToolNameInvalid, "action %q must declare exactly one of path or execute", a.Name)
		}
		if a.Description == "" {
			return gambiterr.Errorf(gambiterr.ToolNameInvalid, "action %q is missing a description", a.Name)
		}
	}

	if d.Executor != nil {
		if len(d.ModelParams) > 0 {
			d.warn("deck declares both executor and modelParams; modelParams is ignored")
		}
	}

	if !d.IsRoot {
		if d.ContextSchema == nil {
			return gambiterr.Errorf(gambiterr.SchemaMismatch, "non-root deck %s must declare a contextSchema", d.Path)
		}
		if d.ResponseSchema == nil {
			return gambiterr.Errorf(gambiterr.SchemaMismatch, "non-root deck %s must declare a responseSchema", d.Path)
		}
	}

	return nil
}

// validateActionName enforces the regex/length/reserved-prefix rules from
// spec.md §3.
func validateActionName(name string) error {
	if len(name) == 0 || len(name) > 64 {
		return gambiterr.Errorf(gambiterr.ToolNameInvalid, "action name %q must be 1-64 characters", name)
	}
	if !toolNamePattern.MatchString(name) {
		return gambiterr.Errorf(gambiterr.ToolNameInvalid, "action name %q does not match ^[A-Za-z_][A-Za-z0-9_]*$", name)
	}
	if strings.HasPrefix(name, "gambit_") {
		if _, ok := reservedBuiltinTools[name]; !ok {
			return gambiterr.Errorf(gambiterr.ToolNameReserved, "action name %q uses the reserved gambit_ prefix", name)
		}
	}
	return nil
}

// CheckSchemaEquality implements the prompt/executor schema-equality
// invariant from spec.md §3: divergence is a warning pre-1.0, an error at
// 1.0+. atOneDotOh selects which behavior applies.
func (d *Deck) CheckSchemaEquality(atOneDotOh bool) error {
	if d.Executor == nil {
		return nil
	}
	if d.Executor.ContextSchema != nil && d.ContextSchema != nil && !schema.Equal(d.ContextSchema, d.Executor.ContextSchema) {
		msg := "contextSchema declared in the prompt diverges from the executor module's declared contextSchema"
		if atOneDotOh {
			return gambiterr.New(gambiterr.SchemaMismatch, msg)
		}
		d.warn(msg)
	}
	if d.Executor.ResponseSchema != nil && d.ResponseSchema != nil && !schema.Equal(d.ResponseSchema, d.Executor.ResponseSchema) {
		msg := "responseSchema declared in the prompt diverges from the executor module's declared responseSchema"
		if atOneDotOh {
			return gambiterr.New(gambiterr.SchemaMismatch, msg)
		}
		d.warn(msg)
	}
	return nil
}
