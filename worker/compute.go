package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bolt-foundry/gambit/bridge"
	"github.com/bolt-foundry/gambit/deck"
	"github.com/bolt-foundry/gambit/gambiterr"
	"github.com/bolt-foundry/gambit/telemetry"
)

// ComputeWorker handles decks whose executor is set (spec.md §4.4). It
// speaks the bridge protocol over a Link and dispatches exactly one run to
// the deck's native executor.
type ComputeWorker struct {
	Deck    *deck.Deck
	Sandbox *Sandbox
	Link    bridge.Link
	Logger  telemetry.Logger

	session *bridge.Session
}

// Run pumps the link until it receives the worker's single run.start,
// executes the deck's executor against it, and replies with run.result or
// run.error. It returns when the run completes or the link closes.
func (w *ComputeWorker) Run(ctx context.Context) error {
	if w.Logger == nil {
		w.Logger = telemetry.NoopLogger{}
	}

	start, session, err := awaitRunStart(ctx, w.Link)
	if err != nil {
		return err
	}
	if start == nil {
		return nil // link closed before a run.start arrived
	}
	w.session = session

	go pumpReplies(ctx, w.Link, session)

	g := deck.DefaultGuardrails()
	if w.Deck.Guardrails != nil {
		g = *w.Deck.Guardrails
	}
	runCtx, cancel := deadlineCtx(ctx, g, start.ParentDeadline)
	defer cancel()

	result := w.execute(runCtx, *start)
	return sendRunResult(ctx, w.Link, session, result)
}

func (w *ComputeWorker) execute(ctx context.Context, start RunStartPayload) outcomePayload {
	d := w.Deck
	if !d.IsRoot && (d.ContextSchema == nil || d.ResponseSchema == nil) {
		return failureOutcome(gambiterr.Errorf(gambiterr.SchemaMismatch, "non-root deck %s missing contextSchema/responseSchema", d.Path))
	}

	input := start.Input
	if input == nil && d.IsRoot {
		input = ""
	}
	if d.ContextSchema != nil {
		if _, err := d.ContextSchema.Parse(input); err != nil {
			if s, ok := input.(string); ok && d.IsRoot {
				input = s // allowRootStringInput: fall back to the raw string
			} else {
				return failureOutcome(gambiterr.NewWithCause(gambiterr.SchemaMismatch, "input failed contextSchema validation", err))
			}
		}
	}

	ec := newExecutionContext(start, w.Link, w.session, w.Logger, start.State)

	if d.Executor == nil {
		return failureOutcome(gambiterr.New(gambiterr.UnsupportedFeature, "deck has no native executor"))
	}

	done := make(chan outcomePayload, 1)
	go func() {
		payload, err := d.Executor.Executor.Execute(ctx, ec)
		if err != nil {
			done <- failureOutcome(err)
			return
		}
		if result, returned, failure := ec.outcome(); failure != nil {
			done <- failureOutcome(failure)
			return
		} else if returned {
			payload = result
		}
		done <- w.validateAndRespond(payload)
	}()

	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		return failureOutcome(gambiterr.New(gambiterr.Timeout, "run deadline exceeded"))
	}
}

func (w *ComputeWorker) validateAndRespond(payload any) outcomePayload {
	d := w.Deck
	if d.ResponseSchema != nil {
		if _, err := d.ResponseSchema.Parse(payload); err != nil {
			return failureOutcome(gambiterr.NewWithCause(gambiterr.SchemaMismatch, "executor return value failed responseSchema validation", err))
		}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return failureOutcome(err)
	}
	return outcomePayload{payload: raw}
}

// outcomePayload is the internal shape shared by compute and orchestration
// workers when building their terminal run.result/run.error.
type outcomePayload struct {
	payload json.RawMessage
	err     error
}

func failureOutcome(err error) outcomePayload { return outcomePayload{err: err} }

func awaitRunStart(ctx context.Context, link bridge.Link) (*RunStartPayload, *bridge.Session, error) {
	for {
		env, ok := link.Recv(ctx)
		if !ok {
			return nil, nil, nil
		}
		if env.Type != bridge.TypeRunStart {
			continue
		}
		session := bridge.NewSessionWithID(env.BridgeSession)
		if !session.IngestRunStart(env.CompletionNonce) {
			continue
		}
		var payload RunStartPayload
		if err := env.Decode(&payload); err != nil {
			return nil, nil, err
		}
		return &payload, session, nil
	}
}

// pumpReplies continuously drains link for messages that resolve this
// worker's own outstanding continuations (spawn.result/spawn.error,
// model.*.result/model.*.error), routing them through session's pending
// table. It exits when the link closes or ctx is done.
func pumpReplies(ctx context.Context, link bridge.Link, session *bridge.Session) {
	for {
		env, ok := link.Recv(ctx)
		if !ok {
			return
		}
		if !session.Accept(env) {
			continue
		}
		switch env.Type {
		case bridge.TypeSpawnResult, bridge.TypeModelChatResult, bridge.TypeModelResponsesResult, bridge.TypeModelResolveModelResult:
			session.Resolve(env.RequestID, env)
		case bridge.TypeSpawnError, bridge.TypeModelChatError, bridge.TypeModelResponsesError, bridge.TypeModelResolveModelError:
			session.Reject(env.RequestID, decodeReplyError(env))
		}
	}
}

// decodeReplyError recovers the child's actual Kind/Message/Code from a
// *.error envelope instead of synthesizing a generic failure, matching how
// rundeck.go's replySpawnError/replyChatError build their own wire errors.
// Every *.error payload shares the same {requestId, error} shape on the
// wire regardless of message type, so one anonymous struct decodes all of
// them.
func decodeReplyError(env bridge.Envelope) error {
	var body struct {
		RequestID string                 `json:"requestId"`
		Error     *gambiterr.WirePayload `json:"error,omitempty"`
	}
	if err := env.Decode(&body); err != nil || body.Error == nil {
		return gambiterr.New(gambiterr.ModelError, "request failed")
	}
	return gambiterr.FromWire(*body.Error)
}

func sendRunResult(ctx context.Context, link bridge.Link, session *bridge.Session, out outcomePayload) error {
	if out.err != nil {
		wire := gambiterr.FromError(out.err).ToWire("worker")
		env, err := bridge.Encode(bridge.TypeRunError, session.ID(), RunErrorPayload{Error: wire})
		if err != nil {
			return err
		}
		env.CompletionNonce = session.Nonce()
		return link.Send(ctx, env)
	}
	env, err := bridge.Encode(bridge.TypeRunResult, session.ID(), RunResultPayload{Status: "ok", Payload: out.payload})
	if err != nil {
		return err
	}
	env.CompletionNonce = session.Nonce()
	return link.Send(ctx, env)
}

// deadlineCtx derives a context bounded by the deck's own guardrails
// intersected with an inherited parentDeadline, used by callers
// constructing the worker's run context (spec.md §4.4 step 4: "Check the
// deadline"; spec.md §3: a descendant's deadline never outlives its
// ancestor's). A zero parentDeadline means the caller is the root of the
// invocation and only its own guardrails apply.
func deadlineCtx(parent context.Context, g deck.Guardrails, parentDeadline time.Time) (context.Context, context.CancelFunc) {
	deadline := g.Deadline(time.Now())
	if !parentDeadline.IsZero() && parentDeadline.Before(deadline) {
		deadline = parentDeadline
	}
	return context.WithDeadline(parent, deadline)
}
