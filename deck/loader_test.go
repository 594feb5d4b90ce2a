package deck

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolt-foundry/gambit/gambiterr"
	"github.com/bolt-foundry/gambit/schema"
)

// fsStub is a minimal in-memory FileSystem for loader tests.
type fsStub map[string]string

func (f fsStub) ReadFile(path string) (string, error) {
	content, ok := f[path]
	if !ok {
		return "", assert.AnError
	}
	return content, nil
}

// stubSchema satisfies schema.Schema with a fixed JSON Schema document, so
// fragment-merge tests can inspect the merged result without a real
// jsonschema compile.
type stubSchema struct{ doc map[string]any }

func (s stubSchema) Parse(input any) (any, error) { return input, nil }
func (s stubSchema) JSONSchema() any              { return s.doc }

type stubSchemaResolver struct{ schemas map[string]schema.Schema }

func (r stubSchemaResolver) Resolve(ref, ownerDir string) (schema.Schema, error) {
	s, ok := r.schemas[ref]
	if !ok {
		return nil, assert.AnError
	}
	return s, nil
}

func kindOf(t *testing.T, err error) gambiterr.Kind {
	t.Helper()
	gerr, ok := err.(*gambiterr.Error)
	require.True(t, ok, "expected *gambiterr.Error, got %T: %v", err, err)
	return gerr.Kind
}

func TestLoadDeckRejectsTopLevelExecute(t *testing.T) {
	loader := NewLoader(Options{
		FileSystem: fsStub{"root.md": "+++\nexecute: worker.exec\n+++\nbody"},
	})
	_, err := loader.LoadDeck("root.md")
	require.Error(t, err)
	assert.Equal(t, gambiterr.UnsupportedFeature, kindOf(t, err))
}

func TestLoadActionRejectsTopLevelExecute(t *testing.T) {
	loader := NewLoader(Options{
		FileSystem: fsStub{"nested.md": "+++\nexecute: worker.exec\ncontextSchema: any\nresponseSchema: any\n+++\nbody"},
		Schemas:    stubSchemaResolver{schemas: map[string]schema.Schema{"any": stubSchema{doc: map[string]any{}}}},
	})
	_, err := loader.LoadAction("nested.md")
	require.Error(t, err)
	assert.Equal(t, gambiterr.UnsupportedFeature, kindOf(t, err))
}

func TestLoadExecutorActionBuildsSyntheticDeckFromModule(t *testing.T) {
	loader := NewLoader(Options{
		Executors: mapExecs{
			"lookup.exec": &ExecutorModule{
				Executor:       fakeExec{},
				ContextSchema:  stubSchema{doc: map[string]any{}},
				ResponseSchema: stubSchema{doc: map[string]any{}},
			},
		},
	})

	d, err := loader.LoadExecutorAction("lookup.exec", false)
	require.NoError(t, err)
	assert.False(t, d.IsRoot)
	assert.NotNil(t, d.Executor)
	assert.NotNil(t, d.ContextSchema)
	assert.NotNil(t, d.ResponseSchema)

	root, err := loader.LoadExecutorAction("lookup.exec", true)
	require.NoError(t, err)
	assert.True(t, root.IsRoot)
}

func TestLoadExecutorActionMissingModuleErrors(t *testing.T) {
	loader := NewLoader(Options{Executors: mapExecs{}})
	_, err := loader.LoadExecutorAction("missing.exec", false)
	require.Error(t, err)
}

func TestActionMustDeclareExactlyOneOfPathOrExecute(t *testing.T) {
	loader := NewLoader(Options{
		FileSystem: fsStub{
			"both.md":    "+++\nactions:\n  - name: a\n    description: d\n    path: x.md\n    execute: x.exec\n+++\nbody",
			"neither.md": "+++\nactions:\n  - name: a\n    description: d\n+++\nbody",
		},
	})
	_, err := loader.LoadDeck("both.md")
	require.Error(t, err)
	assert.Equal(t, gambiterr.ToolNameInvalid, kindOf(t, err))

	_, err = loader.LoadDeck("neither.md")
	require.Error(t, err)
	assert.Equal(t, gambiterr.ToolNameInvalid, kindOf(t, err))
}

func TestActionWithoutDescriptionIsRejected(t *testing.T) {
	loader := NewLoader(Options{
		FileSystem: fsStub{"root.md": "+++\nactions:\n  - name: a\n    path: x.md\n+++\nbody"},
	})
	_, err := loader.LoadDeck("root.md")
	require.Error(t, err)
	assert.Equal(t, gambiterr.ToolNameInvalid, kindOf(t, err))
}

func TestActionNameReservedPrefixIsRejectedUnlessBuiltin(t *testing.T) {
	loader := NewLoader(Options{
		FileSystem: fsStub{
			"bad.md":  "+++\nactions:\n  - name: gambit_custom\n    description: d\n    path: x.md\n+++\nbody",
			"good.md": "+++\nactions:\n  - name: gambit_respond\n    description: d\n    path: x.md\n+++\nbody",
		},
	})
	_, err := loader.LoadDeck("bad.md")
	require.Error(t, err)
	assert.Equal(t, gambiterr.ToolNameReserved, kindOf(t, err))

	_, err = loader.LoadDeck("good.md")
	require.NoError(t, err)
}

func TestEmbedCycleDetectionOnFilesystemPath(t *testing.T) {
	loader := NewLoader(Options{
		FileSystem: fsStub{
			"a.md": "+++\n+++\nsee ![b](b.md)",
			"b.md": "+++\n+++\nback to ![a](a.md)",
		},
	})
	_, err := loader.LoadDeck("a.md")
	require.Error(t, err)
	assert.Equal(t, gambiterr.EmbedCycle, kindOf(t, err))
}

func TestEmbedCycleDetectionOnVirtualCard(t *testing.T) {
	loader := NewLoader(Options{
		Assets: MapAssetSource{
			"cards/x.card.md": "+++\n+++\n![y](gambit://cards/y.card.md)",
			"cards/y.card.md": "+++\n+++\n![x](gambit://cards/x.card.md)",
		},
	})
	_, err := loader.LoadCard("gambit://cards/x.card.md")
	require.Error(t, err)
	assert.Equal(t, gambiterr.EmbedCycle, kindOf(t, err))
}

func TestEmbedExpandsSpecialAndCardTargets(t *testing.T) {
	loader := NewLoader(Options{
		FileSystem: fsStub{
			"root.md": "+++\n+++\nstart.\n![r](gambit://respond)\n![init](gambit://init)\n![end](gambit://end)",
		},
	})
	d, err := loader.LoadDeck("root.md")
	require.NoError(t, err)
	assert.True(t, d.Respond)
	assert.True(t, d.AllowEnd)
	assert.Contains(t, d.Body, RespondText)
	assert.Contains(t, d.Body, InitText)
	assert.Contains(t, d.Body, EndText)
}

func TestLegacyAliasRewriteIsWarnedOnceAndIsIdempotentAcrossLoads(t *testing.T) {
	loader := NewLoader(Options{
		FileSystem: fsStub{"root.md": "+++\ninputSchema: any\noutputSchema: any\n+++\nbody"},
		Schemas:    stubSchemaResolver{schemas: map[string]schema.Schema{"any": stubSchema{doc: map[string]any{}}}},
	})

	d1, err := loader.LoadDeck("root.md")
	require.NoError(t, err)
	assertLegacyWarnedOnce(t, d1.Warnings)

	// Loading the same source again produces the identical single
	// warning, not an accumulating count (spec.md §8 scenario 8).
	d2, err := loader.LoadDeck("root.md")
	require.NoError(t, err)
	assertLegacyWarnedOnce(t, d2.Warnings)
	assert.Equal(t, d1.Warnings, d2.Warnings)
}

func assertLegacyWarnedOnce(t *testing.T, warnings []string) {
	t.Helper()
	count := 0
	for _, w := range warnings {
		if w == `deck root.md uses deprecated key "inputSchema"` || w == `deck root.md uses deprecated key "outputSchema"` {
			count++
		}
	}
	assert.Equal(t, 2, count, "expected exactly one warning per legacy key, got %v", warnings)
}

func TestCardFragmentsMergeByUnionWithLaterWinningOnCollision(t *testing.T) {
	loader := NewLoader(Options{
		FileSystem: fsStub{
			"root.md":        "+++\ncontextSchema: base\n+++\n![first](first.card.md)\n![second](second.card.md)",
			"first.card.md":  "+++\ncontextFragment:\n  name:\n    type: string\n+++\nfirst card body",
			"second.card.md": "+++\ncontextFragment:\n  name:\n    type: number\n  age:\n    type: integer\n+++\nsecond card body",
		},
		Schemas: stubSchemaResolver{schemas: map[string]schema.Schema{
			"base": stubSchema{doc: map[string]any{"id": map[string]any{"type": "string"}}},
		}},
	})

	d, err := loader.LoadDeck("root.md")
	require.NoError(t, err)
	require.Len(t, d.Cards, 2)

	doc, ok := d.ContextSchema.JSONSchema().(map[string]any)
	require.True(t, ok)

	// base's own key survives the merge untouched.
	assert.Contains(t, doc, "id")
	// second.card.md's fragment wins the "name" key collision over first.
	nameProp, ok := doc["name"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "number", nameProp["type"])
	// second.card.md's non-colliding "age" key is present too.
	assert.Contains(t, doc, "age")
}

// mapExecs resolves executor references from a plain map, used across
// loader tests that exercise [[actions]].execute / LoadExecutorAction.
type mapExecs map[string]*ExecutorModule

func (m mapExecs) Resolve(path, ownerDir string) (*ExecutorModule, error) {
	mod, ok := m[path]
	if !ok {
		return nil, assert.AnError
	}
	return mod, nil
}

type fakeExec struct{}

func (fakeExec) Execute(ctx context.Context, ec ExecutionContext) (any, error) {
	return nil, nil
}
