package orchestrate

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolt-foundry/gambit/deck"
	"github.com/bolt-foundry/gambit/gambiterr"
	"github.com/bolt-foundry/gambit/model"
	"github.com/bolt-foundry/gambit/state"
)

func stateMsg(role, content string) state.Message {
	return state.Message{Role: role, Content: content}
}

type fakeModel struct {
	calls   []model.ChatInput
	results []model.ChatResult
}

func (f *fakeModel) Chat(ctx context.Context, in model.ChatInput) (model.ChatResult, error) {
	f.calls = append(f.calls, in)
	idx := len(f.calls) - 1
	if idx >= len(f.results) {
		return model.ChatResult{}, gambiterr.New(gambiterr.ModelError, "fakeModel: no scripted result")
	}
	return f.results[idx], nil
}

type fakeSpawner struct {
	fn func(ctx context.Context, opts deck.SpawnOptions) (deck.SpawnResult, error)
}

func (f *fakeSpawner) Spawn(ctx context.Context, opts deck.SpawnOptions) (deck.SpawnResult, error) {
	return f.fn(ctx, opts)
}

type testPublisher struct{}

func (testPublisher) PublishState(context.Context, *state.SavedState) {}
func (testPublisher) PublishStreamText(context.Context, string)       {}
func (testPublisher) PublishTrace(context.Context, any)               {}

func TestScenario1_ChatShimSimpleStop(t *testing.T) {
	fm := &fakeModel{results: []model.ChatResult{
		{Message: stateMsg("assistant", "ok"), FinishReason: model.FinishStop},
	}}
	d := &deck.Deck{Path: "root.deck.md", Body: "You are concise.", IsRoot: true}
	loop := New(fm, nil, testPublisher{}, nil, nil)

	res, err := loop.Run(context.Background(), Input{Deck: d, UserMessage: "hi"})
	require.NoError(t, err)
	assert.Equal(t, StatusStop, res.Status)
	assert.Equal(t, "ok", res.Message)

	require.Len(t, fm.calls, 1)
	require.NotEmpty(t, fm.calls[0].Messages)
	assert.Equal(t, "system", fm.calls[0].Messages[0].Role)
	assert.True(t, strings.Contains(fm.calls[0].Messages[0].Content, "You are concise."))
}

func TestScenario2_ToolCallDispatch(t *testing.T) {
	fm := &fakeModel{results: []model.ChatResult{
		{
			Message:      stateMsg("assistant", ""),
			FinishReason: model.FinishToolCalls,
			ToolCalls:    []model.ToolCall{{ID: "call-1", Name: "child", Arguments: `{"text":"hi"}`}},
		},
		{Message: stateMsg("assistant", "done"), FinishReason: model.FinishStop},
	}}
	spawner := &fakeSpawner{fn: func(ctx context.Context, opts deck.SpawnOptions) (deck.SpawnResult, error) {
		m := opts.Input.(map[string]any)
		payload, _ := json.Marshal("child:" + m["text"].(string))
		return deck.SpawnResult{Payload: payload}, nil
	}}
	d := &deck.Deck{
		Path: "root.deck.md", IsRoot: true,
		Actions: []deck.ActionDecl{{Name: "child", Description: "runs child", Ref: deck.Ref{Path: "child.deck.md"}}},
	}
	loop := New(fm, spawner, testPublisher{}, nil, nil)

	res, err := loop.Run(context.Background(), Input{Deck: d, UserMessage: "hi"})
	require.NoError(t, err)
	assert.Equal(t, StatusStop, res.Status)

	require.Len(t, fm.calls, 2)
	second := fm.calls[1].Messages
	var toolMsg *state.Message
	for i := range second {
		if second[i].Role == "tool" {
			toolMsg = &second[i]
		}
	}
	require.NotNil(t, toolMsg)
	assert.Equal(t, "child", toolMsg.Name)
	assert.Equal(t, "call-1", toolMsg.ToolCallID)
	assert.Equal(t, `"child:hi"`, toolMsg.Content)
}

func TestScenario3_ExternalToolBubbles(t *testing.T) {
	fm := &fakeModel{results: []model.ChatResult{
		{
			Message:      stateMsg("assistant", ""),
			FinishReason: model.FinishToolCalls,
			ToolCalls:    []model.ToolCall{{ID: "call-1", Name: "external_tool", Arguments: `{}`}},
		},
	}}
	d := &deck.Deck{Path: "root.deck.md", IsRoot: true}
	loop := New(fm, nil, testPublisher{}, nil, nil)

	res, err := loop.Run(context.Background(), Input{
		Deck:          d,
		UserMessage:   "hi",
		ExternalTools: []model.ToolSpec{{Name: "external_tool", Description: "caller-provided"}},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusToolCalls, res.Status)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "external_tool", res.ToolCalls[0].Name)
	assert.Len(t, fm.calls, 1)
}

func TestScenario4_ToolNameCollisionBeforeAnyModelCall(t *testing.T) {
	fm := &fakeModel{}
	d := &deck.Deck{
		Path: "root.deck.md", IsRoot: true,
		Actions: []deck.ActionDecl{{Name: "dup", Description: "deck action", Ref: deck.Ref{Path: "dup.deck.md"}}},
	}
	loop := New(fm, nil, testPublisher{}, nil, nil)

	_, err := loop.Run(context.Background(), Input{
		Deck:          d,
		UserMessage:   "hi",
		ExternalTools: []model.ToolSpec{{Name: "dup", Description: "external"}},
	})
	require.Error(t, err)
	assert.Equal(t, gambiterr.ToolNameCollision, gambiterr.FromError(err).Kind)
	assert.Empty(t, fm.calls)
}
