// Package orchestrate implements the orchestration loop (spec.md §4.5): the
// Start -> Turn -> AwaitModel -> Dispatch -> (Turn | Finalize) state machine,
// guardrail enforcement, and onBusy/onIdle/onError handler dispatch. It is
// transport-agnostic: callers wire Model/Spawner/Publisher to whatever
// carries requests to the parent (the bridge, in production; an in-memory
// fake in tests).
package orchestrate

import (
	"context"

	"github.com/bolt-foundry/gambit/deck"
	"github.com/bolt-foundry/gambit/model"
	"github.com/bolt-foundry/gambit/state"
)

// ModelPort issues a chat turn to the model provider living outside the
// sandbox (spec.md §4.5: "proxies model I/O to the parent").
type ModelPort interface {
	Chat(ctx context.Context, input model.ChatInput) (model.ChatResult, error)
}

// SpawnPort dispatches a deck action to a nested worker and waits for its
// result (spec.md §4.4 step 2's spawnAndWait, surfaced to the loop for
// Dispatch).
type SpawnPort interface {
	Spawn(ctx context.Context, opts deck.SpawnOptions) (deck.SpawnResult, error)
}

// Publisher emits the worker->parent side-channel messages produced while a
// pass runs: state snapshots, stream tokens, and trace events (spec.md
// §4.3's state.update/stream.text/trace.event).
type Publisher interface {
	PublishState(ctx context.Context, s *state.SavedState)
	PublishStreamText(ctx context.Context, text string)
	PublishTrace(ctx context.Context, event any)
}
