package worker

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/bolt-foundry/gambit/bridge"
	"github.com/bolt-foundry/gambit/deck"
	"github.com/bolt-foundry/gambit/gambiterr"
	"github.com/bolt-foundry/gambit/state"
	"github.com/bolt-foundry/gambit/telemetry"
)

// executionContext is the concrete deck.ExecutionContext a compute worker
// hands to a native executor. Mutations publish state.update across the
// bridge (spec.md §4.4 step 3); SpawnAndWait issues a spawn.request and
// blocks on the matching spawn.result (spec.md §4.4 step 2).
type executionContext struct {
	runID              string
	actionCallID       string
	parentActionCallID string
	depth              int
	input              any
	initialUserMessage string
	label              string
	deckPath           string

	link    bridge.Link
	session *bridge.Session
	logger  telemetry.Logger

	mu       sync.Mutex
	state    *state.SavedState
	failure  error
	result   any
	returned bool
}

func newExecutionContext(run RunStartPayload, link bridge.Link, session *bridge.Session, logger telemetry.Logger, seed *state.SavedState) *executionContext {
	if seed == nil {
		seed = state.New(run.RunID)
	}
	return &executionContext{
		runID:              run.RunID,
		actionCallID:       run.ActionCallID,
		parentActionCallID: run.ParentActionCallID,
		depth:              run.Depth,
		input:              run.Input,
		initialUserMessage: run.InitialUserMessage,
		label:              run.Label,
		deckPath:           run.DeckPath,
		link:               link,
		session:            session,
		logger:             logger,
		state:              seed,
	}
}

func (c *executionContext) RunID() string             { return c.runID }
func (c *executionContext) ActionCallID() string       { return c.actionCallID }
func (c *executionContext) ParentActionCallID() string { return c.parentActionCallID }
func (c *executionContext) Depth() int                 { return c.depth }
func (c *executionContext) Input() any                 { return c.input }
func (c *executionContext) InitialUserMessage() string { return c.initialUserMessage }
func (c *executionContext) Label() string              { return c.label }

func (c *executionContext) GetSessionMeta(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Meta == nil {
		return nil, false
	}
	v, ok := c.state.Meta[key]
	return v, ok
}

func (c *executionContext) SetSessionMeta(key string, value any) {
	c.mu.Lock()
	if c.state.Meta == nil {
		c.state.Meta = map[string]any{}
	}
	c.state.Meta[key] = value
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.publishState(snapshot)
}

func (c *executionContext) AppendMessage(role, content string) {
	c.mu.Lock()
	c.state.Messages = append(c.state.Messages, state.Message{Role: role, Content: content})
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.publishState(snapshot)
}

// snapshotLocked returns a shallow copy of the current state for
// publication. Callers must hold c.mu.
func (c *executionContext) snapshotLocked() *state.SavedState {
	cp := *c.state
	return &cp
}

func (c *executionContext) publishState(snapshot *state.SavedState) {
	env, err := bridge.Encode(bridge.TypeStateUpdate, c.session.ID(), StateUpdatePayload{State: snapshot})
	if err != nil {
		return
	}
	_ = c.link.Send(context.Background(), env)
}

func (c *executionContext) Log(level, msg string, keyvals ...any) {
	switch level {
	case "debug":
		c.logger.Debug(context.Background(), msg, keyvals...)
	case "warn":
		c.logger.Warn(context.Background(), msg, keyvals...)
	case "error":
		c.logger.Error(context.Background(), msg, keyvals...)
	default:
		c.logger.Info(context.Background(), msg, keyvals...)
	}
	env, err := bridge.Encode(bridge.TypeLogEntry, c.session.ID(), LogEntryPayload{Level: level, Message: msg})
	if err == nil {
		_ = c.link.Send(context.Background(), env)
	}
}

// SpawnAndWait issues a spawn.request across the bridge and blocks until
// the matching spawn.result/spawn.error arrives (spec.md §4.4 step 2).
func (c *executionContext) SpawnAndWait(ctx context.Context, opts deck.SpawnOptions) (deck.SpawnResult, error) {
	requestID := uuid.NewString()
	resultCh := make(chan deck.SpawnResult, 1)
	errCh := make(chan error, 1)

	c.session.Register(requestID, bridge.TypeSpawnRequest,
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

	env, err := bridge.Encode(bridge.TypeSpawnRequest, c.session.ID(), SpawnRequestPayload{
		RequestID:  requestID,
		Path:       deck.ResolvePath(c.deckPath, opts.Path),
		Input:      opts.Input,
		IsExecutor: opts.IsExecutor,
	})
	if err != nil {
		return deck.SpawnResult{}, err
	}
	env.RequestID = requestID
	if err := c.link.Send(ctx, env); err != nil {
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

func (c *executionContext) Fail(err error) {
	c.mu.Lock()
	c.failure = err
	c.mu.Unlock()
}

func (c *executionContext) Return(payload any) {
	c.mu.Lock()
	c.result = payload
	c.returned = true
	c.mu.Unlock()
}

func (c *executionContext) outcome() (result any, returned bool, failure error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.returned, c.failure
}

func (c *executionContext) currentState() *state.SavedState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

var _ deck.ExecutionContext = (*executionContext)(nil)
