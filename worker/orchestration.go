package worker

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/bolt-foundry/gambit/bridge"
	"github.com/bolt-foundry/gambit/deck"
	"github.com/bolt-foundry/gambit/gambiterr"
	"github.com/bolt-foundry/gambit/model"
	"github.com/bolt-foundry/gambit/orchestrate"
	"github.com/bolt-foundry/gambit/state"
	"github.com/bolt-foundry/gambit/telemetry"
)

// OrchestrationWorker hosts an orchestrate.Loop for decks with modelParams
// (spec.md §4.5). Model I/O, spawns, state snapshots and handler side-effect
// spawns all cross the bridge to the parent rather than touching anything
// directly — the loop never sees the transport.
type OrchestrationWorker struct {
	Deck    *deck.Deck
	Sandbox *Sandbox
	Link    bridge.Link
	Logger  telemetry.Logger

	session *bridge.Session
}

// Run pumps the link for its single run.start, drives an orchestrate.Loop
// to completion, and replies with run.result or run.error.
func (w *OrchestrationWorker) Run(ctx context.Context) error {
	logger := w.Logger
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}

	start, session, err := awaitRunStart(ctx, w.Link)
	if err != nil {
		return err
	}
	if start == nil {
		return nil
	}
	w.session = session

	go pumpReplies(ctx, w.Link, session)

	adapters := &bridgeAdapters{link: w.Link, session: session}

	g := deck.DefaultGuardrails()
	if w.Deck.Guardrails != nil {
		g = *w.Deck.Guardrails
	}
	runCtx, cancel := deadlineCtx(ctx, g, start.ParentDeadline)
	defer cancel()

	loop := orchestrate.New(adapters, adapters, adapters, adapters, logger)
	res, err := loop.Run(runCtx, orchestrate.Input{
		Deck:           w.Deck,
		ExternalTools:  start.ExternalTools,
		Seed:           start.State,
		UserMessage:    start.InitialUserMessage,
		Depth:          start.Depth,
		ParentDeadline: start.ParentDeadline,
		ModelName:      start.ModelName,
	})

	out := translateLoopResult(res, err)
	return sendRunResult(ctx, w.Link, session, out)
}

func translateLoopResult(res orchestrate.Result, err error) outcomePayload {
	if err != nil {
		return failureOutcome(err)
	}
	if res.Status == orchestrate.StatusToolCalls {
		return failureOutcome(gambiterr.New(gambiterr.UnsupportedFeature, "orchestration worker cannot resolve an external tool call on its own"))
	}
	if len(res.Payload) > 0 {
		return outcomePayload{payload: res.Payload}
	}
	raw, _ := json.Marshal(res.Message)
	return outcomePayload{payload: raw}
}

// bridgeAdapters implements orchestrate.ModelPort, orchestrate.SpawnPort,
// orchestrate.Publisher, and orchestrate.HandlerPort by proxying every call
// across the bridge to the parent (spec.md §4.5: "the loop ... proxies
// model I/O to the parent").
type bridgeAdapters struct {
	link    bridge.Link
	session *bridge.Session
}

func (a *bridgeAdapters) Chat(ctx context.Context, input model.ChatInput) (model.ChatResult, error) {
	requestID := uuid.NewString()
	resultCh := make(chan model.ChatResult, 1)
	errCh := make(chan error, 1)

	a.session.Register(requestID, bridge.TypeModelChatRequest,
		func(reply bridge.Envelope) {
			var payload ModelChatResultPayload
			_ = reply.Decode(&payload)
			if payload.Error != nil {
				errCh <- gambiterr.FromWire(*payload.Error)
				return
			}
			resultCh <- payload.Result
		},
		func(err error) { errCh <- err },
	)

	env, err := bridge.Encode(bridge.TypeModelChatRequest, a.session.ID(), ModelChatRequestPayload{RequestID: requestID, Input: input})
	if err != nil {
		return model.ChatResult{}, err
	}
	env.RequestID = requestID
	if err := a.link.Send(ctx, env); err != nil {
		return model.ChatResult{}, err
	}

	select {
	case res := <-resultCh:
		return res, nil
	case err := <-errCh:
		return model.ChatResult{}, err
	case <-ctx.Done():
		return model.ChatResult{}, ctx.Err()
	}
}

func (a *bridgeAdapters) Spawn(ctx context.Context, opts deck.SpawnOptions) (deck.SpawnResult, error) {
	requestID := uuid.NewString()
	resultCh := make(chan deck.SpawnResult, 1)
	errCh := make(chan error, 1)

	a.session.Register(requestID, bridge.TypeSpawnRequest,
		func(reply bridge.Envelope) {
			var payload SpawnResultPayload
			_ = reply.Decode(&payload)
			res := deck.SpawnResult{Payload: payload.Payload}
			if payload.Error != nil {
				res.Error = gambiterr.FromWire(*payload.Error)
			}
			resultCh <- res
		},
		func(err error) { errCh <- err },
	)

	env, err := bridge.Encode(bridge.TypeSpawnRequest, a.session.ID(), SpawnRequestPayload{RequestID: requestID, Path: opts.Path, Input: opts.Input, IsExecutor: opts.IsExecutor})
	if err != nil {
		return deck.SpawnResult{}, err
	}
	env.RequestID = requestID
	if err := a.link.Send(ctx, env); err != nil {
		return deck.SpawnResult{}, err
	}

	select {
	case res := <-resultCh:
		return res, nil
	case err := <-errCh:
		return deck.SpawnResult{}, err
	case <-ctx.Done():
		return deck.SpawnResult{}, ctx.Err()
	}
}

func (a *bridgeAdapters) PublishState(ctx context.Context, s *state.SavedState) {
	env, err := bridge.Encode(bridge.TypeStateUpdate, a.session.ID(), StateUpdatePayload{State: s})
	if err != nil {
		return
	}
	_ = a.link.Send(ctx, env)
}

func (a *bridgeAdapters) PublishStreamText(ctx context.Context, text string) {
	env, err := bridge.Encode(bridge.TypeStreamText, a.session.ID(), StreamTextPayload{Text: text})
	if err != nil {
		return
	}
	_ = a.link.Send(ctx, env)
}

func (a *bridgeAdapters) PublishTrace(ctx context.Context, event any) {
	env, err := bridge.Encode(bridge.TypeTraceEvent, a.session.ID(), TraceEventPayload{Event: event})
	if err != nil {
		return
	}
	_ = a.link.Send(ctx, env)
}

// FireHandler dispatches a handler deck as a side-effect spawn and discards
// its result (spec.md §4.5: handlers "never feed back into the loop's
// message history"). It runs in its own goroutine so a slow handler cannot
// stall the pass it was fired from.
func (a *bridgeAdapters) FireHandler(ctx context.Context, ref deck.Ref, payload any) {
	go func() {
		_, _ = a.Spawn(ctx, deck.SpawnOptions{Path: ref.Path, Input: payload})
	}()
}
