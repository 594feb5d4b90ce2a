// Package state implements the SavedState value object passed between the
// runtime and the external caller (spec.md §3, §9). Two on-disk shapes are
// accepted — a message-centric shape and a response-item-centric shape —
// and DeriveMessages implements the projection between them.
package state

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Message mirrors one chat-shaped entry in a SavedState's Messages array.
type Message struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// ToolCall mirrors the OpenAI-chat-shaped tool_calls entry on an assistant
// message.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function ToolCallFunc `json:"function"`
}

// ToolCallFunc is the name/arguments payload of a ToolCall.
type ToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Item is one entry in the response-shaped items[] array (spec.md §3/§6):
// a message, a function_call, or a function_call_output.
type Item struct {
	Type       string         `json:"type"`
	Role       string         `json:"role,omitempty"`
	Content    []ItemPart     `json:"content,omitempty"`
	CallID     string         `json:"call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
	Arguments  string         `json:"arguments,omitempty"`
	Output     string         `json:"output,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// ItemPart is one part of a message item's content array.
type ItemPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Feedback, MessageRef, Trace, Note are opaque caller-defined payloads the
// runtime threads through unexamined (spec.md §3: feedback?, traces?,
// notes?, conversationScore?).
type (
	Feedback   = json.RawMessage
	MessageRef = json.RawMessage
	Trace      = json.RawMessage
	Note       = json.RawMessage
)

// SavedState is the lifecycle value described in spec.md §3: created at run
// start, mutated only by the worker executing the turn, published to the
// parent on every change via state.update, persisted by the external
// caller. Both Messages and Items may be populated simultaneously; neither
// is canonical (spec.md §9 Open Question — writers emit whichever shape
// they received).
type SavedState struct {
	RunID              string         `json:"runId"`
	Messages           []Message      `json:"messages,omitempty"`
	Items              []Item         `json:"items,omitempty"`
	Meta               map[string]any `json:"meta,omitempty"`
	MessageRefs        []MessageRef   `json:"messageRefs,omitempty"`
	Feedback           []Feedback     `json:"feedback,omitempty"`
	Traces             []Trace        `json:"traces,omitempty"`
	Notes              []Note         `json:"notes,omitempty"`
	ConversationScore  *float64       `json:"conversationScore,omitempty"`
}

// New creates a fresh SavedState for a run, generating a RunID if the
// caller didn't supply one — mirroring the teacher's generateRunID helper
// in agents/runtime/runtime/runtime.go.
func New(runID string) *SavedState {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &SavedState{RunID: runID}
}

// EffectiveMessages returns the state's chat-shaped conversation: Messages
// directly if present, otherwise the projection of Items via
// DeriveMessages, per spec.md §6 ("Readers that see items but no messages
// derive messages via...").
func (s *SavedState) EffectiveMessages() []Message {
	if len(s.Messages) > 0 {
		return s.Messages
	}
	return DeriveMessages(s.Items)
}

// DeriveMessages projects a response-shaped items[] array into the
// chat-shaped messages[] array, per spec.md §6:
//   - each "message" item -> {role, content = concat(part.text)}
//   - each "function_call" item -> assistant with tool_calls:
//     [{id, type:"function", function:{name, arguments}}]
//   - each "function_call_output" item -> {role:"tool", tool_call_id,
//     name=lookup(call_id), content: output}
//
// This is the invariant checked in spec.md §8:
// deriveMessages(state.items) ≡ state.messages when both are present.
func DeriveMessages(items []Item) []Message {
	names := make(map[string]string, len(items))
	for _, it := range items {
		if it.Type == "function_call" {
			names[it.CallID] = it.Name
		}
	}

	out := make([]Message, 0, len(items))
	for _, it := range items {
		switch it.Type {
		case "message":
			var content string
			for _, part := range it.Content {
				content += part.Text
			}
			out = append(out, Message{Role: it.Role, Content: content})
		case "function_call":
			out = append(out, Message{
				Role: "assistant",
				ToolCalls: []ToolCall{{
					ID:   it.CallID,
					Type: "function",
					Function: ToolCallFunc{
						Name:      it.Name,
						Arguments: it.Arguments,
					},
				}},
			})
		case "function_call_output":
			out = append(out, Message{
				Role:       "tool",
				ToolCallID: it.CallID,
				Name:       names[it.CallID],
				Content:    it.Output,
			})
		}
	}
	return out
}
