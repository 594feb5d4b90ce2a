// Package model defines the model provider contract (spec.md §6): the one
// external collaborator that is part of the runtime's boundary. The
// concrete provider (Anthropic, OpenAI, Bedrock, ...) is out of scope
// (spec.md §1) — this package only fixes the shape every orchestration
// worker programs against.
package model

import (
	"context"

	"github.com/bolt-foundry/gambit/state"
)

// FinishReason enumerates why a provider call stopped producing output.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
)

// ToolSpec describes one callable tool offered to the model for a turn,
// built from the deck's merged action/external tool catalog (spec.md
// §4.5 Turn).
type ToolSpec struct {
	Name        string
	Description string
	Parameters  any // JSON Schema document
}

// ToolCall is a single invocation the model requested.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON
}

// Usage carries token accounting for a single provider call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Streaming groups the optional callbacks a caller can supply on ChatInput
// to receive incremental output (supplements spec.md §6's "stream,
// onStreamText, onStreamEvent, onTraceEvent" callbacks with a concrete,
// typed shape — see SPEC_FULL.md Supplemented Features #2). Implementations
// must treat these as non-blocking, matching the teacher's PlannerEvents
// contract (runtime/agent/planner.go).
type Streaming struct {
	Enabled       bool
	OnStreamText  func(ctx context.Context, text string)
	OnStreamEvent func(ctx context.Context, event any)
	OnTraceEvent  func(ctx context.Context, event any)
}

// ChatInput is the request passed to Provider.Chat.
type ChatInput struct {
	Model     string
	Messages  []state.Message
	Tools     []ToolSpec
	// Streaming holds process-local callbacks; it is not encoded when a
	// ChatInput crosses the bridge.
	Streaming *Streaming `json:"-"`
}

// ChatResult is the response returned by Provider.Chat.
type ChatResult struct {
	Message      state.Message
	FinishReason FinishReason
	ToolCalls    []ToolCall
	Usage        *Usage
}

// CreateResponseResponse is the result of Provider.Responses, kept as an
// opaque alias since the responses-API wire shape is entirely the
// provider's concern (spec.md §6 names it without constraining its
// fields).
type CreateResponseResponse struct {
	Items        []state.Item
	FinishReason FinishReason
	Usage        *Usage
}

// ResolvedModel is returned by Provider.ResolveModel.
type ResolvedModel struct {
	Model  string
	Params map[string]any
}

// Provider is the model provider contract named in spec.md §6. It is
// supplied by the caller (chatCompletions, runDeck) and proxied to
// orchestration workers across the bridge (§4.3's model.chat.request /
// model.chat.result messages), never called directly from inside a worker.
type Provider interface {
	Chat(ctx context.Context, input ChatInput) (ChatResult, error)
	Responses(ctx context.Context, input ChatInput) (CreateResponseResponse, error)
	ResolveModel(ctx context.Context, id string) (ResolvedModel, error)
}
