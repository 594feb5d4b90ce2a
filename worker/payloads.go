package worker

import (
	"encoding/json"
	"time"

	"github.com/bolt-foundry/gambit/gambiterr"
	"github.com/bolt-foundry/gambit/model"
	"github.com/bolt-foundry/gambit/state"
)

// RunStartPayload is the run.start message body (spec.md §4.3/§4.4/§4.5).
type RunStartPayload struct {
	RunID              string            `json:"runId"`
	DeckPath           string            `json:"deckPath"`
	Input              any               `json:"input"`
	Label              string            `json:"label,omitempty"`
	InitialUserMessage string            `json:"initialUserMessage,omitempty"`
	ActionCallID       string            `json:"actionCallId,omitempty"`
	ParentActionCallID string            `json:"parentActionCallId,omitempty"`
	Depth              int               `json:"depth"`
	State              *state.SavedState `json:"state,omitempty"`
	ExternalTools      []model.ToolSpec  `json:"externalTools,omitempty"`
	ModelName          string            `json:"modelName,omitempty"`

	// ParentDeadline is the absolute instant (spec.md §3: "timeoutMs is
	// converted to a runDeadlineMs absolute monotonic instant") the root
	// of this invocation computed from its own Guardrails.TimeoutMs. It
	// is propagated unchanged to every descendant so a deeply nested
	// spawn never outlives the run that started it. Zero means no
	// inherited deadline; the worker still applies its deck's own
	// guardrails.
	ParentDeadline time.Time `json:"parentDeadline,omitempty"`
}

// RunResultPayload is the run.result message body.
type RunResultPayload struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
	Meta    map[string]any  `json:"meta,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RunErrorPayload is the run.error message body.
type RunErrorPayload struct {
	Error gambiterr.WirePayload `json:"error"`
}

// SpawnRequestPayload is the spawn.request message body sent by a worker
// to the parent when an executor calls SpawnAndWait.
type SpawnRequestPayload struct {
	RequestID  string `json:"requestId"`
	Path       string `json:"path"`
	Input      any    `json:"input"`
	IsExecutor bool   `json:"isExecutor,omitempty"`
}

// SpawnResultPayload is the spawn.result/spawn.error message body.
type SpawnResultPayload struct {
	RequestID string                 `json:"requestId"`
	Payload   json.RawMessage        `json:"payload,omitempty"`
	Error     *gambiterr.WirePayload `json:"error,omitempty"`
}

// StateUpdatePayload carries the full current SavedState (spec.md §4.4
// step 3: "Any setSessionMeta/appendMessage mutation publishes a
// state.update carrying the full current SavedState").
type StateUpdatePayload struct {
	State *state.SavedState `json:"state"`
}

// LogEntryPayload is the log.entry message body.
type LogEntryPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// ModelChatRequestPayload is the model.chat.request message body a worker
// sends when proxying a chat turn to the parent's model provider.
type ModelChatRequestPayload struct {
	RequestID string          `json:"requestId"`
	Input     model.ChatInput `json:"input"`
}

// ModelChatResultPayload is the model.chat.result message body.
type ModelChatResultPayload struct {
	RequestID string                 `json:"requestId"`
	Result    model.ChatResult       `json:"result"`
	Error     *gambiterr.WirePayload `json:"error,omitempty"`
}

// StreamTextPayload is the stream.text message body.
type StreamTextPayload struct {
	Text string `json:"text"`
}

// TraceEventPayload is the trace.event message body. Event is opaque
// caller-defined data, matching spec.md §6's onTraceEvent callback shape.
type TraceEventPayload struct {
	Event any `json:"event"`
}
