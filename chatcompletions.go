package gambit

import (
	"context"
	"time"

	"github.com/bolt-foundry/gambit/deck"
	"github.com/bolt-foundry/gambit/model"
	"github.com/bolt-foundry/gambit/permission"
	"github.com/bolt-foundry/gambit/shim"
	"github.com/bolt-foundry/gambit/telemetry"
)

// ChatCompletionsOptions configures one call to ChatCompletions: the root
// deck to load, the chat-shaped request, the model provider, and the
// resolved permission set any action the deck declares will spawn under.
type ChatCompletionsOptions struct {
	Loader      *deck.Loader
	DeckPath    string
	Request     shim.Request
	Provider    model.Provider
	Permissions permission.Set
	Logger      telemetry.Logger
}

// ChatCompletions implements spec.md §6's `chatCompletions(deckPath,
// request, modelProvider) -> Response`: it loads the named deck and
// delegates to shim.ChatCompletions, wiring a SpawnPort backed by RunDeck
// so that any action the deck's own turn calls runs as a real nested
// worker rather than something shim has to know how to execute itself.
func ChatCompletions(ctx context.Context, opts ChatCompletionsOptions) (shim.Response, error) {
	d, err := opts.Loader.LoadDeck(opts.DeckPath)
	if err != nil {
		return shim.Response{}, err
	}

	g := deck.DefaultGuardrails()
	if d.Guardrails != nil {
		g = *d.Guardrails
	}
	deadline := g.Deadline(time.Now())

	spawner := &runDeckSpawner{
		loader:         opts.Loader,
		deck:           d,
		provider:       opts.Provider,
		permissions:    opts.Permissions,
		logger:         opts.Logger,
		parentDeadline: deadline,
	}

	return shim.ChatCompletions(ctx, shim.Input{
		Deck:           d,
		Request:        opts.Request,
		Provider:       opts.Provider,
		Spawner:        spawner,
		Logger:         opts.Logger,
		ParentDeadline: deadline,
	})
}

// runDeckSpawner adapts RunDeck into the orchestrate.SpawnPort the loop
// calls when a deck's own turn issues a tool call matching one of its
// declared [[actions]].
type runDeckSpawner struct {
	loader         *deck.Loader
	deck           *deck.Deck
	provider       model.Provider
	permissions    permission.Set
	logger         telemetry.Logger
	parentDeadline time.Time
}

func (s *runDeckSpawner) Spawn(ctx context.Context, opts deck.SpawnOptions) (deck.SpawnResult, error) {
	reference := referenceDeclarationFor(s.deck, opts.Path)
	childSet, err := ResolveChildPermissions(ChildPermissionLayers{
		Parent:      s.permissions,
		Declaration: permission.Declaration{},
		Reference:   reference,
	})
	if err != nil {
		return deck.SpawnResult{}, err
	}

	payload, err := RunDeck(ctx, RunDeckOptions{
		Loader:         s.loader,
		DeckPath:       opts.Path,
		Input:          opts.Input,
		IsExecutor:     opts.IsExecutor,
		Depth:          1,
		ParentDeadline: s.parentDeadline,
		Provider:       s.provider,
		Permissions:    childSet.Effective,
		Logger:         s.logger,
	})
	if err != nil {
		return deck.SpawnResult{Error: err}, nil
	}
	return deck.SpawnResult{Payload: payload}, nil
}
