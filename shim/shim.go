// Package shim implements the external chat-completions façade (spec.md
// §4.6): the one entry point shaped like a familiar chat API rather than the
// runtime's own deck/worker vocabulary. It is a pure function, not a server
// — callers already hold a loaded deck and a model.Provider; shim only
// injects the deck body as a system message, drives the orchestration loop,
// and translates the terminal result back into chat-completion shape.
package shim

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bolt-foundry/gambit/deck"
	"github.com/bolt-foundry/gambit/model"
	"github.com/bolt-foundry/gambit/orchestrate"
	"github.com/bolt-foundry/gambit/state"
	"github.com/bolt-foundry/gambit/telemetry"
)

// Request is an OpenAI-chat-completion-shaped request (spec.md §4.6):
// `{model, messages, tools?}`.
type Request struct {
	Model    string
	Messages []state.Message
	Tools    []model.ToolSpec
}

// Choice is one entry in Response.Choices. Only one choice is ever produced
// — the runtime has no notion of sampling n completions.
type Choice struct {
	Message      state.Message
	FinishReason string
}

// GambitExtension carries the runtime's own view of the conversation
// alongside the OpenAI-shaped envelope, named `gambit` on the wire
// (spec.md §4.6: "gambit: {messages}").
type GambitExtension struct {
	Messages []state.Message
}

// Response is the chat-completion-shaped reply (spec.md §4.6).
type Response struct {
	Object  string
	Choices []Choice
	Gambit  GambitExtension
}

const (
	finishReasonStop      = "stop"
	finishReasonToolCalls = "tool_calls"
)

// Input configures one ChatCompletions call.
type Input struct {
	Deck     *deck.Deck
	Request  Request
	Provider model.Provider

	// Spawner resolves the deck's own [[actions]], if any. It may be nil
	// when the deck declares no actions — the loop never calls it.
	Spawner orchestrate.SpawnPort
	// Publisher receives state/stream/trace side-channel events. A noop
	// is used when nil.
	Publisher orchestrate.Publisher
	// Handlers fires onBusy/onIdle/onError side-effect spawns. May be nil.
	Handlers orchestrate.HandlerPort
	Logger   telemetry.Logger

	// ParentDeadline is the absolute deadline the caller computed from
	// in.Deck's own guardrails (spec.md §3), so the loop's internal
	// deadline and the deadline threaded into any nested spawn the
	// caller issues agree on the same instant.
	ParentDeadline time.Time
}

// ChatCompletions runs in.Deck's loop against in.Request and translates the
// terminal result into chat-completion shape (spec.md §4.6).
func ChatCompletions(ctx context.Context, in Input) (Response, error) {
	seed := state.New("")
	var systemOverride string
	for _, m := range in.Request.Messages {
		if m.Role == "system" {
			if systemOverride == "" {
				systemOverride = m.Content
			}
			continue
		}
		seed.Messages = append(seed.Messages, m)
	}

	publisher := in.Publisher
	if publisher == nil {
		publisher = noopPublisher{}
	}

	loop := orchestrate.New(providerPort{in.Provider}, in.Spawner, publisher, in.Handlers, in.Logger)
	result, err := loop.Run(ctx, orchestrate.Input{
		Deck:           in.Deck,
		ExternalTools:  in.Request.Tools,
		Seed:           seed,
		SystemOverride: systemOverride,
		ParentDeadline: in.ParentDeadline,
		ModelName:      in.Request.Model,
	})
	if err != nil {
		return Response{}, err
	}
	return translate(result), nil
}

func translate(result orchestrate.Result) Response {
	var choice Choice
	switch result.Status {
	case orchestrate.StatusToolCalls:
		choice = Choice{
			Message:      state.Message{Role: "assistant", ToolCalls: toStateToolCalls(result.ToolCalls)},
			FinishReason: finishReasonToolCalls,
		}
	case orchestrate.StatusRespond, orchestrate.StatusEnd:
		choice = Choice{
			Message:      state.Message{Role: "assistant", Content: payloadToContent(result.Payload)},
			FinishReason: finishReasonStop,
		}
	default: // StatusStop
		choice = Choice{
			Message:      state.Message{Role: "assistant", Content: result.Message},
			FinishReason: finishReasonStop,
		}
	}

	var messages []state.Message
	if result.State != nil {
		messages = result.State.EffectiveMessages()
	}

	return Response{
		Object:  "chat.completion",
		Choices: []Choice{choice},
		Gambit:  GambitExtension{Messages: messages},
	}
}

func toStateToolCalls(calls []model.ToolCall) []state.ToolCall {
	out := make([]state.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, state.ToolCall{
			ID:   c.ID,
			Type: "function",
			Function: state.ToolCallFunc{
				Name:      c.Name,
				Arguments: c.Arguments,
			},
		})
	}
	return out
}

// payloadToContent renders a gambit_respond/gambit_end JSON payload as the
// assistant message's content string. A bare JSON string payload is
// unwrapped so callers see plain text rather than a quoted string.
func payloadToContent(payload json.RawMessage) string {
	var s string
	if err := json.Unmarshal(payload, &s); err == nil {
		return s
	}
	return string(payload)
}

// providerPort adapts model.Provider (the full model contract, including
// Responses/ResolveModel) down to orchestrate.ModelPort's single Chat
// method.
type providerPort struct {
	provider model.Provider
}

func (p providerPort) Chat(ctx context.Context, input model.ChatInput) (model.ChatResult, error) {
	return p.provider.Chat(ctx, input)
}

// noopPublisher discards every side-channel event, the default when a
// caller has nowhere to route them.
type noopPublisher struct{}

func (noopPublisher) PublishState(ctx context.Context, s *state.SavedState) {}
func (noopPublisher) PublishStreamText(ctx context.Context, text string)    {}
func (noopPublisher) PublishTrace(ctx context.Context, event any)           {}
