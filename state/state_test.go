package state_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bolt-foundry/gambit/state"
)

func TestDeriveMessagesRoundTrip(t *testing.T) {
	items := []state.Item{
		{Type: "message", Role: "user", Content: []state.ItemPart{{Type: "text", Text: "hi"}}},
		{Type: "function_call", CallID: "call-1", Name: "child", Arguments: `{"text":"hi"}`},
		{Type: "function_call_output", CallID: "call-1", Output: "child:hi"},
		{Type: "message", Role: "assistant", Content: []state.ItemPart{{Type: "text", Text: "done"}}},
	}

	got := state.DeriveMessages(items)
	want := []state.Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", ToolCalls: []state.ToolCall{{ID: "call-1", Type: "function", Function: state.ToolCallFunc{Name: "child", Arguments: `{"text":"hi"}`}}}},
		{Role: "tool", ToolCallID: "call-1", Name: "child", Content: "child:hi"},
		{Role: "assistant", Content: "done"},
	}
	assert.Equal(t, want, got)
}

func TestEffectiveMessagesPrefersMessagesWhenBothPresent(t *testing.T) {
	s := &state.SavedState{
		Messages: []state.Message{{Role: "user", Content: "from messages"}},
		Items:    []state.Item{{Type: "message", Role: "user", Content: []state.ItemPart{{Type: "text", Text: "from items"}}}},
	}
	got := s.EffectiveMessages()
	assert.Equal(t, "from messages", got[0].Content)
}

func TestNewGeneratesRunIDWhenEmpty(t *testing.T) {
	s := state.New("")
	assert.NotEmpty(t, s.RunID)

	s2 := state.New("explicit")
	assert.Equal(t, "explicit", s2.RunID)
}
