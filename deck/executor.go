package deck

import (
	"context"
	"encoding/json"

	"github.com/bolt-foundry/gambit/schema"
)

// ExecutionContext is the value passed to a native executor (spec.md §3).
// The runtime implements this; executors only see the interface.
type ExecutionContext interface {
	RunID() string
	ActionCallID() string
	ParentActionCallID() string
	Depth() int
	Input() any
	InitialUserMessage() string
	Label() string

	GetSessionMeta(key string) (any, bool)
	SetSessionMeta(key string, value any)
	AppendMessage(role, content string)

	Log(level, msg string, keyvals ...any)

	// SpawnAndWait issues a nested spawn through the worker bridge and
	// blocks until the child completes. Paths inside opts.Path are resolved
	// relative to the deck's own directory (spec.md §4.4).
	SpawnAndWait(ctx context.Context, opts SpawnOptions) (SpawnResult, error)

	// Fail aborts the run with a structured error.
	Fail(err error)
	// Return completes the run successfully with the given payload.
	Return(payload any)
}

// SpawnOptions describes a nested deck invocation requested by an
// executor via ExecutionContext.SpawnAndWait.
type SpawnOptions struct {
	Path  string
	Input any

	// IsExecutor is true when Path names a native-executor module
	// directly (an [[actions]].execute entry) rather than a deck file
	// (an [[actions]].path entry). It tells the receiving side to load
	// the target with Loader.LoadExecutorAction instead of LoadAction.
	IsExecutor bool
}

// SpawnResult is the outcome of a nested spawn.
type SpawnResult struct {
	Payload json.RawMessage
	Error   error
}

// Executor is the contract a native-executor module's default export must
// satisfy (spec.md §4.1 step 7: "expose run or execute").
type Executor interface {
	Execute(ctx context.Context, ec ExecutionContext) (any, error)
}

// ExecutorModule additionally declares the schemas the executor itself
// expects, used for the prompt/executor schema-equality check (spec.md §3
// invariant, §9).
type ExecutorModule struct {
	Executor       Executor
	ContextSchema  schema.Schema
	ResponseSchema schema.Schema
}
