package gambit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolt-foundry/gambit/deck"
	"github.com/bolt-foundry/gambit/model"
	"github.com/bolt-foundry/gambit/permission"
	"github.com/bolt-foundry/gambit/shim"
	"github.com/bolt-foundry/gambit/state"
)

func TestChatCompletionsStopReturnsDirectly(t *testing.T) {
	loader := deck.NewLoader(deck.Options{
		FileSystem: mapFileSystem{"agent.md": "you are a helpful agent"},
	})

	provider := fakeProvider{chat: func(ctx context.Context, input model.ChatInput) (model.ChatResult, error) {
		return model.ChatResult{Message: state.Message{Role: "assistant", Content: "hi"}, FinishReason: model.FinishStop}, nil
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := ChatCompletions(ctx, ChatCompletionsOptions{
		Loader:      loader,
		DeckPath:    "agent.md",
		Provider:    provider,
		Permissions: permission.Set{Read: permission.AllScope(), Write: permission.AllScope(), Run: permission.AllRunScope(), Net: permission.AllScope(), Env: permission.AllScope()},
		Request:     shim.Request{Messages: []state.Message{{Role: "user", Content: "hello"}}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, "hi", resp.Choices[0].Message.Content)
}

func TestChatCompletionsSpawnsActionViaRunDeck(t *testing.T) {
	loader := deck.NewLoader(deck.Options{
		FileSystem: mapFileSystem{
			"agent.md": "+++\nactions:\n  - name: lookup\n    execute: lookup.exec\n    description: looks things up\n+++\nyou are the root agent",
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
		return model.ChatResult{Message: state.Message{Role: "assistant", Content: "done"}, FinishReason: model.FinishStop}, nil
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := ChatCompletions(ctx, ChatCompletionsOptions{
		Loader:      loader,
		DeckPath:    "agent.md",
		Provider:    provider,
		Permissions: permission.Set{Read: permission.AllScope(), Write: permission.AllScope(), Run: permission.AllRunScope(), Net: permission.AllScope(), Env: permission.AllScope()},
		Request:     shim.Request{Messages: []state.Message{{Role: "user", Content: "look it up"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "done", resp.Choices[0].Message.Content)
}
