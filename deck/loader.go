package deck

import (
	"fmt"
	"path/filepath"

	"github.com/bolt-foundry/gambit/gambiterr"
	"github.com/bolt-foundry/gambit/permission"
	"github.com/bolt-foundry/gambit/schema"
	"github.com/bolt-foundry/gambit/telemetry"
)

// FileSystem is the file I/O primitive the loader needs. Concrete file
// access is an external collaborator per spec.md §1 ("file I/O
// primitives... defined solely by the contracts in §6"); callers supply an
// implementation (a thin os.ReadFile wrapper in the common case).
type FileSystem interface {
	ReadFile(path string) (string, error)
}

// SchemaResolver loads a schema reference (either a gambit://schemas/...
// bundled reference or a path relative to the owning file) into a usable
// Schema (spec.md §4.1 step 4).
type SchemaResolver interface {
	Resolve(ref, ownerDir string) (schema.Schema, error)
}

// ExecutorResolver loads a native-executor module reference into an
// ExecutorModule (spec.md §4.1 step 7).
type ExecutorResolver interface {
	Resolve(path, ownerDir string) (*ExecutorModule, error)
}

// Loader resolves deck and card sources into validated Deck/Card values
// (spec.md §4.1). It holds no per-load state; LoadDeck/LoadCard are safe to
// call concurrently.
type Loader struct {
	fs       FileSystem
	assets   AssetSource
	schemas  SchemaResolver
	execs    ExecutorResolver
	logger   telemetry.Logger
	oneDotOh bool // selects SchemaMismatch warn-vs-error behavior (spec.md §3)
}

// Options configures a Loader.
type Options struct {
	FileSystem      FileSystem
	Assets          AssetSource
	Schemas         SchemaResolver
	Executors       ExecutorResolver
	Logger          telemetry.Logger
	SchemaV1OrLater bool
}

// NewLoader constructs a Loader, substituting a Noop logger and an empty
// asset source when not provided.
func NewLoader(opts Options) *Loader {
	assets := opts.Assets
	if assets == nil {
		assets = MapAssetSource{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &Loader{
		fs:       opts.FileSystem,
		assets:   assets,
		schemas:  opts.Schemas,
		execs:    opts.Executors,
		logger:   logger,
		oneDotOh: opts.SchemaV1OrLater,
	}
}

// LoadDeck resolves path into a validated Deck (spec.md §4.1's contract:
// loadDeck(path) -> LoadedDeck | Error). path may be a filesystem path or a
// gambit://decks/... virtual path.
func (l *Loader) LoadDeck(path string) (*Deck, error) {
	return l.loadDeck(path, true, nil)
}

// LoadAction loads an action deck reference as a non-root child, the same
// way the orchestration loop dispatches a tool call to a nested deck
// (spec.md §2 "Tool calls... dispatched as nested spawns").
func (l *Loader) LoadAction(path string) (*Deck, error) {
	return l.loadDeck(path, false, nil)
}

// LoadExecutorAction resolves an [[actions]].execute reference directly
// into a synthetic non-root Deck backed by the named executor module, with
// no markdown file of its own (spec.md §4.1 Rejections: a deck file may
// never declare top-level execute; the only way to reach a native executor
// is through an action's execute entry). The synthetic deck's schemas come
// straight from the resolved ExecutorModule.
func (l *Loader) LoadExecutorAction(path string, isRoot bool) (*Deck, error) {
	if l.execs == nil {
		return nil, fmt.Errorf("deck loader: action declares execute=%q but no ExecutorResolver is configured", path)
	}
	mod, err := l.execs.Resolve(path, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve executor for %s: %w", path, err)
	}
	d := &Deck{
		Path:           path,
		Executor:       mod,
		ContextSchema:  mod.ContextSchema,
		ResponseSchema: mod.ResponseSchema,
		IsRoot:         isRoot,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadCard resolves path into a validated Card (spec.md §4.1's contract:
// loadCard(path) -> LoadedCard | Error).
func (l *Loader) LoadCard(path string) (*Card, error) {
	content, err := l.readSource(path)
	if err != nil {
		return nil, err
	}
	return l.loadCardFromSource(path, content, nil)
}

func (l *Loader) readSource(path string) (string, error) {
	if IsVirtualPath(path) {
		uri := splitVirtualTarget(path)
		content, ok := l.assets.Asset(uri)
		if !ok {
			return "", gambiterr.Errorf(gambiterr.FrontMatterParseError, "bundled asset %q not found", path)
		}
		return content, nil
	}
	if l.fs == nil {
		return "", fmt.Errorf("deck loader: no FileSystem configured for path %q", path)
	}
	content, err := l.fs.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read deck %s: %w", path, err)
	}
	return content, nil
}

func (l *Loader) loadDeck(path string, isRoot bool, stack []string) (*Deck, error) {
	source, err := l.readSource(path)
	if err != nil {
		return nil, err
	}

	attrs, body, err := splitFrontMatter(source)
	if err != nil {
		return nil, err
	}
	legacyUsed := applyLegacyAliases(attrs)

	expandedBody, cards, respond, allowEnd, err := l.expandBody(body, path, stack)
	if err != nil {
		return nil, err
	}

	d := &Deck{
		Path:     path,
		Body:     expandedBody,
		Cards:    cards,
		Respond:  respond,
		AllowEnd: allowEnd,
		IsRoot:   isRoot,
	}

	for _, legacy := range legacyUsed {
		d.warn(fmt.Sprintf("deck %s uses deprecated key %q", path, legacy))
	}

	if v, ok := attrs["label"].(string); ok {
		d.Label = v
	}
	if v, ok := attrs["startMode"].(string); ok {
		d.StartMode = StartMode(v)
	}
	if v, ok := attrs["modelParams"].(map[string]any); ok {
		d.ModelParams = v
	}
	if refs, err := parseRefList(attrs["scenarios"]); err == nil {
		d.TestDecks = refs
	}
	if refs, err := parseRefList(attrs["graders"]); err == nil {
		d.GraderDecks = refs
	}
	l.resolveGuardrails(d, attrs)
	l.resolveHandlers(d, attrs)

	if err := l.resolveActions(d, attrs); err != nil {
		return nil, err
	}
	if err := l.resolveSchemas(d, attrs); err != nil {
		return nil, err
	}
	if err := l.resolveExecutor(d, attrs); err != nil {
		return nil, err
	}
	if err := l.resolvePermissions(d, attrs); err != nil {
		return nil, err
	}
	l.mergeCardFragments(d)

	if _, ok := attrs["mcpServers"]; ok {
		return nil, gambiterr.New(gambiterr.UnsupportedFeature, "deck declares [[mcpServers]], which is not supported by this runtime")
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := d.CheckSchemaEquality(l.oneDotOh); err != nil {
		return nil, err
	}

	return d, nil
}

func (l *Loader) loadCardFromSource(path, source string, stack []string) (*Card, error) {
	attrs, body, err := splitFrontMatter(source)
	if err != nil {
		return nil, err
	}
	applyLegacyAliases(attrs)

	expandedBody, cards, respond, allowEnd, err := l.expandBody(body, path, stack)
	if err != nil {
		return nil, err
	}

	c := &Card{
		Path:     path,
		Body:     expandedBody,
		Cards:    cards,
		Respond:  respond,
		AllowEnd: allowEnd,
	}
	if v, ok := attrs["contextFragment"].(map[string]any); ok {
		c.ContextFragment = v
	}
	if v, ok := attrs["responseFragment"].(map[string]any); ok {
		c.ResponseFragment = v
	}
	if refs, err := parseRefList(attrs["actions"]); err == nil {
		c.ActionRefs = refs
	}
	if refs, err := parseRefList(attrs["scenarios"]); err == nil {
		c.TestRefs = refs
	}
	if refs, err := parseRefList(attrs["graders"]); err == nil {
		c.GraderRefs = refs
	}
	return c, nil
}

// mergeCardFragments folds every embedded card's context/response fragment
// into the deck's own schema document by object-field union, later
// fragments winning on key collision (spec.md §4.1 step 5). A deck that
// declared no schema of that kind gets one built from the merged fragments
// alone.
func (l *Loader) mergeCardFragments(d *Deck) {
	var contextDoc, responseDoc map[string]any
	var found bool
	for _, c := range d.Cards {
		if c.ContextFragment != nil {
			contextDoc = mergeFragment(contextDoc, c.ContextFragment)
			found = true
		}
		if c.ResponseFragment != nil {
			responseDoc = mergeFragment(responseDoc, c.ResponseFragment)
			found = true
		}
	}
	if !found {
		return
	}
	if contextDoc != nil {
		base := ensureSchemaDoc(d.ContextSchema)
		merged := mergeFragment(base, contextDoc)
		if adapter, err := schema.NewAdapter(d.Path+"#context", merged); err == nil {
			d.ContextSchema = adapter
		}
	}
	if responseDoc != nil {
		base := ensureSchemaDoc(d.ResponseSchema)
		merged := mergeFragment(base, responseDoc)
		if adapter, err := schema.NewAdapter(d.Path+"#response", merged); err == nil {
			d.ResponseSchema = adapter
		}
	}
}

func (l *Loader) resolveSchemas(d *Deck, attrs map[string]any) error {
	if l.schemas == nil {
		return nil
	}
	dir := filepath.Dir(d.Path)
	if ref, ok := attrs["contextSchema"].(string); ok {
		s, err := l.schemas.Resolve(ref, dir)
		if err != nil {
			return fmt.Errorf("resolve contextSchema for %s: %w", d.Path, err)
		}
		d.ContextSchema = s
	}
	if ref, ok := attrs["responseSchema"].(string); ok {
		s, err := l.schemas.Resolve(ref, dir)
		if err != nil {
			return fmt.Errorf("resolve responseSchema for %s: %w", d.Path, err)
		}
		d.ResponseSchema = s
	}
	return nil
}

// resolveExecutor rejects a deck-level execute front-matter key (spec.md
// §4.1 Rejections: "top-level execute on a deck (must be per-action)"). A
// compute-backed deck is never addressed by loading a file of its own; it
// is synthesized directly from the action entry that names it (see
// LoadExecutorAction).
func (l *Loader) resolveExecutor(d *Deck, attrs map[string]any) error {
	if _, ok := attrs["execute"].(string); ok {
		return gambiterr.Errorf(gambiterr.UnsupportedFeature, "deck %s declares top-level execute; native executors must be declared on an [[actions]].execute entry", d.Path)
	}
	return nil
}

func (l *Loader) resolvePermissions(d *Deck, attrs map[string]any) error {
	raw, ok := attrs["permissions"].(map[string]any)
	if !ok {
		return nil
	}
	decl := permission.Declaration{BaseDir: filepath.Dir(d.Path)}
	if v, ok := raw["read"]; ok {
		decl.Read = toStringSliceOrBool(v)
	}
	if v, ok := raw["write"]; ok {
		decl.Write = toStringSliceOrBool(v)
	}
	if v, ok := raw["net"]; ok {
		decl.Net = toStringSliceOrBool(v)
	}
	if v, ok := raw["env"]; ok {
		decl.Env = toStringSliceOrBool(v)
	}
	if v, ok := raw["run"]; ok {
		decl.Run = toRunDeclaration(v)
	}
	d.Permissions = &decl
	return nil
}

func toStringSliceOrBool(v any) any {
	switch val := v.(type) {
	case bool:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return val
	default:
		return nil
	}
}

func toRunDeclaration(v any) any {
	switch val := v.(type) {
	case bool:
		return val
	case map[string]any:
		return permission.RunDeclaration{
			Paths:    toStringSliceOrBool(val["paths"]),
			Commands: toStringSliceOrBool(val["commands"]),
		}
	default:
		return nil
	}
}

func (l *Loader) resolveGuardrails(d *Deck, attrs map[string]any) {
	raw, ok := attrs["guardrails"].(map[string]any)
	if !ok {
		return
	}
	g := DefaultGuardrails()
	if v, ok := raw["maxDepth"].(int); ok {
		g.MaxDepth = v
	}
	if v, ok := raw["maxPasses"].(int); ok {
		g.MaxPasses = v
	}
	if v, ok := raw["timeoutMs"].(int); ok {
		g.TimeoutMs = int64(v)
	}
	d.Guardrails = &g
}

func (l *Loader) resolveHandlers(d *Deck, attrs map[string]any) {
	raw, ok := attrs["handlers"].(map[string]any)
	if !ok {
		return
	}
	h := &Handlers{}
	if spec, ok := raw["onBusy"].(map[string]any); ok {
		hs := &HandlerSpec{RepeatMs: int64(DefaultStatusDelay / 1e6)}
		if p, ok := spec["path"].(string); ok {
			hs.Deck = Ref{Path: ResolvePath(d.Path, p)}
		}
		if v, ok := spec["repeatMs"].(int); ok {
			hs.RepeatMs = int64(v)
		}
		h.OnBusy = hs
	}
	if ref, ok := raw["onIdle"].(map[string]any); ok {
		if p, ok := ref["path"].(string); ok {
			h.OnIdle = &Ref{Path: ResolvePath(d.Path, p)}
		}
	}
	if ref, ok := raw["onError"].(map[string]any); ok {
		if p, ok := ref["path"].(string); ok {
			h.OnError = &Ref{Path: ResolvePath(d.Path, p)}
		}
	}
	d.Handlers = h
}

func (l *Loader) resolveActions(d *Deck, attrs map[string]any) error {
	rawActions, ok := attrs["actions"].([]any)
	if !ok {
		return nil
	}
	for _, raw := range rawActions {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		a := ActionDecl{}
		if v, ok := m["name"].(string); ok {
			a.Name = v
		}
		if v, ok := m["description"].(string); ok {
			a.Description = v
		}
		if v, ok := m["path"].(string); ok {
			a.Ref = Ref{Path: ResolvePath(d.Path, v), Name: a.Name}
		}
		if v, ok := m["execute"].(string); ok {
			a.Execute = ResolvePath(d.Path, v)
		}
		if v, ok := m["parallel"].(bool); ok {
			a.Parallel = v
		}
		d.Actions = append(d.Actions, a)
	}
	return nil
}

// ResolvePath resolves target relative to ownerPath's own directory, passing
// gambit:// virtual targets through unchanged (spec.md §4.1/§4.4: "paths are
// resolved relative to the deck's directory").
func ResolvePath(ownerPath, target string) string {
	if IsVirtualPath(target) {
		return target
	}
	return filepath.Clean(filepath.Join(filepath.Dir(ownerPath), target))
}

func parseRefList(v any) ([]Ref, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("not a list")
	}
	var out []Ref
	for _, item := range items {
		switch val := item.(type) {
		case string:
			out = append(out, Ref{Path: val})
		case map[string]any:
			r := Ref{}
			if p, ok := val["path"].(string); ok {
				r.Path = p
			}
			if n, ok := val["name"].(string); ok {
				r.Name = n
			}
			out = append(out, r)
		}
	}
	return out, nil
}
