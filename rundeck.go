package gambit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/bolt-foundry/gambit/bridge"
	"github.com/bolt-foundry/gambit/deck"
	"github.com/bolt-foundry/gambit/gambiterr"
	"github.com/bolt-foundry/gambit/model"
	"github.com/bolt-foundry/gambit/permission"
	"github.com/bolt-foundry/gambit/state"
	"github.com/bolt-foundry/gambit/telemetry"
	"github.com/bolt-foundry/gambit/worker"
)

// defaultLinkBuffer bounds how many in-flight messages the parent/worker
// channel pair can queue before Send blocks (spec.md §5: the parent may
// have many outstanding spawn.request promises, but writes to a single
// worker are never unbounded).
const defaultLinkBuffer = 16

// RunDeckOptions configures one call to RunDeck, spec.md §6's
// "runDeck(options) — the full orchestration entry used by workers".
type RunDeckOptions struct {
	Loader   *deck.Loader
	DeckPath string
	Input    any

	// IsExecutor is true when DeckPath names a native-executor module
	// directly rather than a deck markdown file (spec.md §4.1 Rejections:
	// compute executors are only reachable through an action's execute
	// entry, never a deck's own top-level execute key).
	IsExecutor bool

	Provider    model.Provider
	Permissions permission.Set

	Depth              int
	ParentDeadline     time.Time
	ExternalTools      []model.ToolSpec
	ModelName          string
	InitialUserMessage string
	Seed               *state.SavedState

	OnStateUpdate func(*state.SavedState)
	OnStreamText  func(string)
	OnTrace       func(any)
	Logger        telemetry.Logger
}

// RunDeck loads a deck, spawns the matching worker (compute or
// orchestration, depending on whether the deck has a native executor), and
// services it as the parent: proxying model.*.request to Provider,
// recursively running spawn.request as a nested RunDeck call, and
// forwarding state/stream/trace events to the supplied callbacks. It
// returns the run's final payload or a *gambiterr.Error on run.error.
func RunDeck(ctx context.Context, opts RunDeckOptions) (json.RawMessage, error) {
	var d *deck.Deck
	var err error
	switch {
	case opts.IsExecutor:
		d, err = opts.Loader.LoadExecutorAction(opts.DeckPath, opts.Depth == 0)
	case opts.Depth == 0:
		d, err = opts.Loader.LoadDeck(opts.DeckPath)
	default:
		d, err = opts.Loader.LoadAction(opts.DeckPath)
	}
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}

	// The root of an invocation computes its own deadline from its
	// deck's guardrails and hands it down unchanged to every descendant
	// (spec.md §3); a recursive call already carries one via
	// opts.ParentDeadline and never overwrites it.
	parentDeadline := opts.ParentDeadline
	if parentDeadline.IsZero() && opts.Depth == 0 {
		g := deck.DefaultGuardrails()
		if d.Guardrails != nil {
			g = *d.Guardrails
		}
		parentDeadline = g.Deadline(time.Now())
	}

	sandbox := worker.NewSandbox(opts.Permissions)
	parentLink, childLink := bridge.NewLinkPair(defaultLinkBuffer)

	var w interface{ Run(context.Context) error }
	if d.Executor != nil {
		w = &worker.ComputeWorker{Deck: d, Sandbox: sandbox, Link: childLink, Logger: logger}
	} else {
		w = &worker.OrchestrationWorker{Deck: d, Sandbox: sandbox, Link: childLink, Logger: logger}
	}
	go func() { _ = w.Run(ctx) }()

	session := bridge.NewSession()
	nonce, ok := session.BeginRun()
	if !ok {
		return nil, gambiterr.New(gambiterr.UnsupportedFeature, "failed to mint a fresh bridge session")
	}

	startEnv, err := bridge.Encode(bridge.TypeRunStart, session.ID(), worker.RunStartPayload{
		RunID:              uuid.NewString(),
		DeckPath:           opts.DeckPath,
		Input:              opts.Input,
		InitialUserMessage: opts.InitialUserMessage,
		Depth:              opts.Depth,
		ParentDeadline:     parentDeadline,
		State:              opts.Seed,
		ExternalTools:      opts.ExternalTools,
		ModelName:          opts.ModelName,
	})
	if err != nil {
		return nil, err
	}
	startEnv.CompletionNonce = nonce
	if err := parentLink.Send(ctx, startEnv); err != nil {
		return nil, err
	}

	opts.ParentDeadline = parentDeadline
	drv := &parentDriver{
		link:    parentLink,
		session: session,
		deck:    d,
		opts:    opts,
		logger:  logger,
	}
	return drv.serve(ctx)
}

// parentDriver implements the parent side of the bridge for one RunDeck
// call: it answers every worker→parent request type until the worker's
// terminal run.result/run.error arrives.
type parentDriver struct {
	link    bridge.Link
	session *bridge.Session
	deck    *deck.Deck
	opts    RunDeckOptions
	logger  telemetry.Logger
}

func (p *parentDriver) serve(ctx context.Context) (json.RawMessage, error) {
	for {
		env, ok := p.link.Recv(ctx)
		if !ok {
			return nil, gambiterr.New(gambiterr.WorkerTerminated, "bridge closed before a terminal reply arrived")
		}
		switch env.Type {
		case bridge.TypeModelChatRequest:
			p.serviceChatRequest(ctx, env)
		case bridge.TypeSpawnRequest:
			p.serviceSpawnRequest(ctx, env)
		case bridge.TypeStateUpdate:
			if p.opts.OnStateUpdate != nil {
				var payload worker.StateUpdatePayload
				if err := env.Decode(&payload); err == nil {
					p.opts.OnStateUpdate(payload.State)
				}
			}
		case bridge.TypeStreamText:
			if p.opts.OnStreamText != nil {
				var payload worker.StreamTextPayload
				if err := env.Decode(&payload); err == nil {
					p.opts.OnStreamText(payload.Text)
				}
			}
		case bridge.TypeTraceEvent:
			if p.opts.OnTrace != nil {
				var payload worker.TraceEventPayload
				if err := env.Decode(&payload); err == nil {
					p.opts.OnTrace(payload.Event)
				}
			}
		case bridge.TypeLogEntry:
			var payload worker.LogEntryPayload
			if err := env.Decode(&payload); err == nil {
				p.logger.Info(ctx, payload.Message, "level", payload.Level, "deck", p.opts.DeckPath)
			}
		case bridge.TypeRunResult:
			var payload worker.RunResultPayload
			if err := env.Decode(&payload); err != nil {
				return nil, err
			}
			return payload.Payload, nil
		case bridge.TypeRunError:
			var payload worker.RunErrorPayload
			if err := env.Decode(&payload); err != nil {
				return nil, err
			}
			return nil, gambiterr.FromWire(payload.Error)
		}
	}
}

func (p *parentDriver) serviceChatRequest(ctx context.Context, env bridge.Envelope) {
	var req worker.ModelChatRequestPayload
	if err := env.Decode(&req); err != nil {
		return
	}
	if p.opts.Provider == nil {
		p.replyChatError(ctx, req.RequestID, gambiterr.New(gambiterr.UnsupportedFeature, "no model provider configured"))
		return
	}
	result, err := p.opts.Provider.Chat(ctx, req.Input)
	if err != nil {
		p.replyChatError(ctx, req.RequestID, gambiterr.FromError(err))
		return
	}
	reply, err := bridge.Encode(bridge.TypeModelChatResult, p.session.ID(), worker.ModelChatResultPayload{RequestID: req.RequestID, Result: result})
	if err != nil {
		return
	}
	reply.RequestID = req.RequestID
	_ = p.link.Send(ctx, reply)
}

func (p *parentDriver) replyChatError(ctx context.Context, requestID string, err *gambiterr.Error) {
	wire := err.ToWire("parent")
	reply, encErr := bridge.Encode(bridge.TypeModelChatError, p.session.ID(), worker.ModelChatResultPayload{RequestID: requestID, Error: &wire})
	if encErr != nil {
		return
	}
	reply.RequestID = requestID
	_ = p.link.Send(ctx, reply)
}

// serviceSpawnRequest runs a nested deck invocation in response to a
// worker's spawn.request, resolving the child's effective permission set
// from the current deck's matching action reference before recursing.
func (p *parentDriver) serviceSpawnRequest(ctx context.Context, env bridge.Envelope) {
	var req worker.SpawnRequestPayload
	if err := env.Decode(&req); err != nil {
		return
	}

	reference := referenceDeclarationFor(p.deck, req.Path)
	childSet, err := ResolveChildPermissions(ChildPermissionLayers{
		Parent:      p.opts.Permissions,
		Declaration: permission.Declaration{},
		Reference:   reference,
	})
	if err != nil {
		p.replySpawnError(ctx, req.RequestID, gambiterr.FromError(err))
		return
	}

	childOpts := RunDeckOptions{
		Loader:         p.opts.Loader,
		DeckPath:       req.Path,
		Input:          req.Input,
		IsExecutor:     req.IsExecutor,
		Provider:       p.opts.Provider,
		Permissions:    childSet.Effective,
		Depth:          p.opts.Depth + 1,
		ParentDeadline: p.opts.ParentDeadline,
		Logger:         p.logger,
	}
	payload, err := RunDeck(ctx, childOpts)
	if err != nil {
		p.replySpawnError(ctx, req.RequestID, gambiterr.FromError(err))
		return
	}

	reply, encErr := bridge.Encode(bridge.TypeSpawnResult, p.session.ID(), worker.SpawnResultPayload{RequestID: req.RequestID, Payload: payload})
	if encErr != nil {
		return
	}
	reply.RequestID = req.RequestID
	_ = p.link.Send(ctx, reply)
}

func (p *parentDriver) replySpawnError(ctx context.Context, requestID string, err *gambiterr.Error) {
	wire := err.ToWire("parent")
	reply, encErr := bridge.Encode(bridge.TypeSpawnError, p.session.ID(), worker.SpawnResultPayload{RequestID: requestID, Error: &wire})
	if encErr != nil {
		return
	}
	reply.RequestID = requestID
	_ = p.link.Send(ctx, reply)
}

// referenceDeclarationFor finds the permission declaration a deck attached
// to the action whose target matches path — the "reference" layer spec.md
// §4.2 describes as "the parent's declared narrowing of what it grants this
// specific child". An action with no declared permissions block grants its
// child everything the parent itself has (no further narrowing).
func referenceDeclarationFor(d *deck.Deck, path string) permission.Declaration {
	for _, a := range d.Actions {
		if a.Ref.Path == path || (a.Execute != "" && a.Execute == path) {
			if a.Permissions != nil {
				return *a.Permissions
			}
			break
		}
	}
	return allDeclaration()
}

// allDeclaration is a Declaration that normalizes to the unrestricted Set,
// used wherever an optional permissions layer is entirely absent (absence
// means "don't narrow further", unlike an authored layer that omits a
// specific kind, which narrows that kind to none per spec.md §4.2).
func allDeclaration() permission.Declaration {
	return permission.Declaration{Read: true, Write: true, Run: true, Net: true, Env: true}
}
