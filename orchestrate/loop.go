package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bolt-foundry/gambit/deck"
	"github.com/bolt-foundry/gambit/gambiterr"
	"github.com/bolt-foundry/gambit/model"
	"github.com/bolt-foundry/gambit/state"
	"github.com/bolt-foundry/gambit/telemetry"
)

// Status distinguishes how a Loop run ended.
type Status string

const (
	StatusStop      Status = "stop"
	StatusRespond   Status = "respond"
	StatusEnd       Status = "end"
	StatusToolCalls Status = "tool_calls" // bubbled external tool call
)

// Result is the terminal outcome of a Loop run (spec.md §4.5 Finalize).
type Result struct {
	Status       Status
	Message      string
	ToolCalls    []model.ToolCall // populated only for StatusToolCalls
	Payload      json.RawMessage  // populated for StatusRespond/StatusEnd
	Code         string
	Meta         map[string]any
	State        *state.SavedState
	FinalPasses  int
}

// Input configures one Loop run.
type Input struct {
	Deck           *deck.Deck
	ExternalTools  []model.ToolSpec
	Seed           *state.SavedState
	UserMessage    string
	SystemOverride string // caller-supplied system message content, if any (triggers a warning)
	Depth          int
	ParentDeadline time.Time // zero means no inherited deadline; the deck's own guardrails still apply
	ModelName      string
}

// Loop drives a single deck through the orchestration state machine
// (spec.md §4.5). A Loop instance is single-use: construct one per run.
type Loop struct {
	Model     ModelPort
	Spawner   SpawnPort
	Publisher Publisher
	Handlers  HandlerPort
	Logger    telemetry.Logger

	passes   int
	deadline time.Time
}

// New constructs a Loop with the given ports. Logger defaults to a noop.
func New(model ModelPort, spawner SpawnPort, publisher Publisher, handlers HandlerPort, logger telemetry.Logger) *Loop {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &Loop{Model: model, Spawner: spawner, Publisher: publisher, Handlers: handlers, Logger: logger}
}

// Run executes the loop to completion or to a guardrail violation.
func (l *Loop) Run(ctx context.Context, in Input) (Result, error) {
	d := in.Deck
	guardrails := deck.DefaultGuardrails()
	if d.Guardrails != nil {
		guardrails = *d.Guardrails
	}

	if in.Depth > guardrails.MaxDepth {
		return Result{}, gambiterr.Errorf(gambiterr.DepthExceeded, "depth %d exceeds maxDepth %d", in.Depth, guardrails.MaxDepth)
	}

	start := time.Now()
	l.deadline = guardrails.Deadline(start)
	if !in.ParentDeadline.IsZero() && in.ParentDeadline.Before(l.deadline) {
		l.deadline = in.ParentDeadline
	}

	st := in.Seed
	if st == nil {
		st = state.New("")
	}

	messages := l.composeStart(d, in, st)

	for {
		if err := l.checkDeadline(); err != nil {
			return Result{}, err
		}

		tools, err := l.buildToolCatalog(d, in.ExternalTools)
		if err != nil {
			return Result{}, err
		}

		if l.passes == guardrails.MaxPasses {
			return Result{}, gambiterr.Errorf(gambiterr.PassesExceeded, "exceeded maxPasses=%d", guardrails.MaxPasses)
		}

		busy := StartBusyMonitor(ctx, handlerSpecOf(d), l.Handlers, map[string]any{"pass": l.passes})
		res, err := l.awaitModel(ctx, in.ModelName, messages, tools)
		busy.Stop()
		if d.Handlers != nil && d.Handlers.OnIdle != nil && l.Handlers != nil {
			l.Handlers.FireHandler(ctx, *d.Handlers.OnIdle, map[string]any{"pass": l.passes})
		}
		if err != nil {
			if d.Handlers != nil && d.Handlers.OnError != nil && l.Handlers != nil {
				l.Handlers.FireHandler(ctx, *d.Handlers.OnError, gambiterr.FromError(err).ToWire("orchestrate"))
			}
			return Result{}, err
		}
		l.passes++

		messages = append(messages, res.Message)

		switch res.FinishReason {
		case model.FinishToolCalls:
			result, done, derr := l.dispatch(ctx, d, &messages, st, res.ToolCalls)
			if derr != nil {
				return Result{}, derr
			}
			if done {
				result.State = st
				result.FinalPasses = l.passes
				return result, nil
			}
			// Continue the loop with the appended tool messages.
		case model.FinishStop:
			return Result{Status: StatusStop, Message: res.Message.Content, State: st, FinalPasses: l.passes}, nil
		default:
			return Result{Status: StatusStop, Message: res.Message.Content, State: st, FinalPasses: l.passes}, nil
		}
	}
}

func handlerSpecOf(d *deck.Deck) *deck.HandlerSpec {
	if d.Handlers == nil {
		return nil
	}
	return d.Handlers.OnBusy
}

// composeStart builds the initial message list: deck body as system prompt,
// seeded history, then the caller's user message (spec.md §4.5 Start).
func (l *Loop) composeStart(d *deck.Deck, in Input, st *state.SavedState) []state.Message {
	if in.SystemOverride != "" {
		l.Logger.Warn(context.Background(), "caller-supplied system message overridden by deck body", "deck", d.Path)
	}
	messages := []state.Message{{Role: "system", Content: d.Body}}
	messages = append(messages, st.EffectiveMessages()...)
	if in.UserMessage != "" {
		messages = append(messages, state.Message{Role: "user", Content: in.UserMessage})
	}
	return messages
}

// buildToolCatalog merges the deck's actions with externally supplied
// tools, failing fast on a name collision (spec.md §4.5 Turn).
func (l *Loop) buildToolCatalog(d *deck.Deck, external []model.ToolSpec) ([]model.ToolSpec, error) {
	seen := make(map[string]struct{}, len(d.Actions)+len(external))
	var tools []model.ToolSpec
	for _, a := range d.Actions {
		tools = append(tools, model.ToolSpec{Name: a.Name, Description: a.Description})
		seen[a.Name] = struct{}{}
	}
	for _, t := range external {
		if _, dup := seen[t.Name]; dup {
			return nil, gambiterr.Errorf(gambiterr.ToolNameCollision, "external tool %q collides with a deck action", t.Name)
		}
		tools = append(tools, t)
		seen[t.Name] = struct{}{}
	}
	return tools, nil
}

func (l *Loop) checkDeadline() error {
	if l.deadline.IsZero() {
		return nil
	}
	if time.Now().After(l.deadline) {
		return gambiterr.New(gambiterr.Timeout, "run deadline exceeded")
	}
	return nil
}

func (l *Loop) awaitModel(ctx context.Context, modelName string, messages []state.Message, tools []model.ToolSpec) (model.ChatResult, error) {
	streaming := &model.Streaming{
		Enabled: true,
		OnStreamText: func(ctx context.Context, text string) {
			l.Publisher.PublishStreamText(ctx, text)
		},
		OnTraceEvent: func(ctx context.Context, event any) {
			l.Publisher.PublishTrace(ctx, event)
		},
	}
	res, err := l.Model.Chat(ctx, model.ChatInput{Model: modelName, Messages: messages, Tools: tools, Streaming: streaming})
	if err != nil {
		return model.ChatResult{}, gambiterr.FromError(err)
	}
	return res, nil
}

// dispatch handles the Dispatch state for one assistant turn's tool calls
// (spec.md §4.5 Dispatch). It returns (result, done, err): done is true when
// the loop must terminate this pass (responder, end, or an external tool
// bubbled to the caller).
func (l *Loop) dispatch(ctx context.Context, d *deck.Deck, messages *[]state.Message, st *state.SavedState, calls []model.ToolCall) (Result, bool, error) {
	actionByName := make(map[string]deck.ActionDecl, len(d.Actions))
	for _, a := range d.Actions {
		actionByName[a.Name] = a
	}

	for _, call := range calls {
		switch call.Name {
		case "gambit_respond":
			payload, err := l.extractPayload(call.Arguments)
			if err != nil {
				return Result{}, false, err
			}
			if d.ResponseSchema != nil {
				if _, err := d.ResponseSchema.Parse(payload); err != nil {
					return Result{}, false, gambiterr.NewWithCause(gambiterr.SchemaMismatch, "gambit_respond payload failed responseSchema validation", err)
				}
			}
			raw, _ := json.Marshal(payload)
			return Result{Status: StatusRespond, Payload: raw}, true, nil

		case "gambit_end":
			if !d.AllowEnd {
				return Result{}, false, gambiterr.New(gambiterr.UnsupportedFeature, "gambit_end called but the deck does not allowEnd")
			}
			payload, _ := l.extractPayload(call.Arguments)
			raw, _ := json.Marshal(payload)
			return Result{Status: StatusEnd, Payload: raw}, true, nil
		}

		if action, ok := actionByName[call.Name]; ok {
			var input any
			_ = json.Unmarshal([]byte(call.Arguments), &input)
			opts := deck.SpawnOptions{Path: action.Ref.Path, Input: input}
			if action.Execute != "" {
				opts = deck.SpawnOptions{Path: action.Execute, Input: input, IsExecutor: true}
			}
			spawnRes, err := l.Spawner.Spawn(ctx, opts)
			if err != nil {
				return Result{}, false, err
			}
			content := string(spawnRes.Payload)
			if spawnRes.Error != nil {
				content = spawnRes.Error.Error()
			}
			*messages = append(*messages, state.Message{Role: "tool", Name: call.Name, ToolCallID: call.ID, Content: content})
			l.Publisher.PublishState(ctx, st)
			continue
		}

		// No matching action: bubble the external tool call to the caller.
		return Result{Status: StatusToolCalls, ToolCalls: calls}, true, nil
	}

	return Result{}, false, nil
}

func (l *Loop) extractPayload(arguments string) (any, error) {
	var wrapper struct {
		Payload any `json:"payload"`
	}
	if err := json.Unmarshal([]byte(arguments), &wrapper); err != nil {
		return nil, fmt.Errorf("decode tool call arguments: %w", err)
	}
	return wrapper.Payload, nil
}
