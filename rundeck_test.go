package gambit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolt-foundry/gambit/deck"
	"github.com/bolt-foundry/gambit/model"
	"github.com/bolt-foundry/gambit/permission"
	"github.com/bolt-foundry/gambit/schema"
	"github.com/bolt-foundry/gambit/state"
)

// passthroughSchema accepts anything, satisfying non-root decks' "must
// declare both contextSchema and responseSchema" invariant without pulling
// in a real schema validator for these tests.
type passthroughSchema struct{}

func (passthroughSchema) Parse(input any) (any, error) { return input, nil }
func (passthroughSchema) JSONSchema() any              { return nil }

type anySchemaResolver struct{}

func (anySchemaResolver) Resolve(ref, ownerDir string) (schema.Schema, error) {
	return passthroughSchema{}, nil
}

type fakeExecutor struct {
	execute func(ctx context.Context, ec deck.ExecutionContext) (any, error)
}

func (f fakeExecutor) Execute(ctx context.Context, ec deck.ExecutionContext) (any, error) {
	return f.execute(ctx, ec)
}

type mapExecutorResolver map[string]*deck.ExecutorModule

func (m mapExecutorResolver) Resolve(path, ownerDir string) (*deck.ExecutorModule, error) {
	mod, ok := m[path]
	if !ok {
		return nil, assert.AnError
	}
	return mod, nil
}

type fakeProvider struct {
	chat func(ctx context.Context, input model.ChatInput) (model.ChatResult, error)
}

func (f fakeProvider) Chat(ctx context.Context, input model.ChatInput) (model.ChatResult, error) {
	return f.chat(ctx, input)
}
func (f fakeProvider) Responses(ctx context.Context, input model.ChatInput) (model.CreateResponseResponse, error) {
	return model.CreateResponseResponse{}, nil
}
func (f fakeProvider) ResolveModel(ctx context.Context, id string) (model.ResolvedModel, error) {
	return model.ResolvedModel{Model: id}, nil
}

func TestRunDeckComputeWorkerHappyPath(t *testing.T) {
	loader := deck.NewLoader(deck.Options{
		Executors: mapExecutorResolver{
			"worker.exec": &deck.ExecutorModule{
				Executor: fakeExecutor{execute: func(ctx context.Context, ec deck.ExecutionContext) (any, error) {
					return map[string]any{"ok": true}, nil
				}},
			},
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// A deck may never declare a top-level execute front-matter key
	// (spec.md §4.1 Rejections); a compute-only root is reached by
	// naming the executor module directly via IsExecutor.
	payload, err := RunDeck(ctx, RunDeckOptions{
		Loader:      loader,
		DeckPath:    "worker.exec",
		IsExecutor:  true,
		Input:       map[string]any{"x": 1},
		Permissions: permission.Set{Read: permission.AllScope(), Write: permission.AllScope(), Run: permission.AllRunScope(), Net: permission.AllScope(), Env: permission.AllScope()},
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, true, decoded["ok"])
}

func TestRunDeckSpawnsNestedActionThroughOrchestrationWorker(t *testing.T) {
	loader := deck.NewLoader(deck.Options{
		FileSystem: mapFileSystem{
			"root.md": "+++\nactions:\n  - name: lookup\n    execute: lookup.exec\n    description: looks things up\n+++\nyou are the root agent",
		},
		Schemas: anySchemaResolver{},
		Executors: mapExecutorResolver{
			"lookup.exec": &deck.ExecutorModule{
				Executor: fakeExecutor{execute: func(ctx context.Context, ec deck.ExecutionContext) (any, error) {
					return map[string]any{"found": true}, nil
				}},
				ContextSchema:  passthroughSchema{},
				ResponseSchema: passthroughSchema{},
			},
		},
	})

	calls := 0
	provider := fakeProvider{chat: func(ctx context.Context, input model.ChatInput) (model.ChatResult, error) {
		calls++
		if calls == 1 {
			return model.ChatResult{
				Message:      state.Message{Role: "assistant"},
				FinishReason: model.FinishToolCalls,
				ToolCalls:    []model.ToolCall{{ID: "call1", Name: "lookup", Arguments: "{}"}},
			}, nil
		}
		return model.ChatResult{
			Message:      state.Message{Role: "assistant", Content: "done"},
			FinishReason: model.FinishStop,
		}, nil
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := RunDeck(ctx, RunDeckOptions{
		Loader:      loader,
		DeckPath:    "root.md",
		Provider:    provider,
		Permissions: permission.Set{Read: permission.AllScope(), Write: permission.AllScope(), Run: permission.AllRunScope(), Net: permission.AllScope(), Env: permission.AllScope()},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
