// Package bridge implements the two-party wire protocol between a parent
// run and the permission-narrowed worker it spawns (spec.md §4.3). Both
// compute workers and orchestration workers speak the same envelope
// vocabulary; only the payload shapes differ.
package bridge

import "encoding/json"

// MessageType is one of the closed set of wire message types spec.md §4.3
// names. The string values are the literal wire tags.
type MessageType string

// Parent→worker message types.
const (
	TypeRunStart                 MessageType = "run.start"
	TypeDeckInspect              MessageType = "deck.inspect"
	TypeModelChatResult          MessageType = "model.chat.result"
	TypeModelResponsesResult     MessageType = "model.responses.result"
	TypeModelResolveModelResult  MessageType = "model.resolveModel.result"
	TypeModelChatStream          MessageType = "model.chat.stream"
	TypeModelResponsesEvent      MessageType = "model.responses.event"
	TypeModelChatTrace           MessageType = "model.chat.trace"
	TypeModelResponsesTrace      MessageType = "model.responses.trace"
	TypeModelChatError           MessageType = "model.chat.error"
	TypeModelResponsesError      MessageType = "model.responses.error"
	TypeModelResolveModelError   MessageType = "model.resolveModel.error"
	TypeSpawnResult              MessageType = "spawn.result"
	TypeSpawnError               MessageType = "spawn.error"
)

// Worker→parent message types.
const (
	TypeModelChatRequest         MessageType = "model.chat.request"
	TypeModelResponsesRequest    MessageType = "model.responses.request"
	TypeModelResolveModelRequest MessageType = "model.resolveModel.request"
	TypeSpawnRequest             MessageType = "spawn.request"
	TypeStateUpdate              MessageType = "state.update"
	TypeStreamText               MessageType = "stream.text"
	TypeTraceEvent               MessageType = "trace.event"
	TypeLogEntry                 MessageType = "log.entry"
	TypeRunResult                MessageType = "run.result"
	TypeRunError                 MessageType = "run.error"
	TypeDeckInspectResult        MessageType = "deck.inspect.result"
	TypeDeckInspectError         MessageType = "deck.inspect.error"
)

// terminalReplyTypes carry a completionNonce that must match the one
// attached to the run.start that produced them (spec.md §4.3: "A
// completionNonce is attached to run.start and echoed in
// run.result/run.error to discard stale responses").
var terminalReplyTypes = map[MessageType]struct{}{
	TypeRunResult: {},
	TypeRunError:  {},
}

// requiresNonce reports whether t is a reply that must carry a matching
// completionNonce to be accepted.
func requiresNonce(t MessageType) bool {
	_, ok := terminalReplyTypes[t]
	return ok
}

// Envelope is the wire shape every bridge message takes: a required type
// and bridgeSession tag, an optional completionNonce, and an opaque
// payload (spec.md §4.3).
type Envelope struct {
	Type            MessageType     `json:"type"`
	BridgeSession   string          `json:"bridgeSession"`
	CompletionNonce string          `json:"completionNonce,omitempty"`
	RequestID       string          `json:"requestId,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`
}

// Encode marshals payload into the envelope's Payload field.
func Encode(t MessageType, bridgeSession string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: t, BridgeSession: bridgeSession, Payload: raw}, nil
}

// Decode unmarshals the envelope's payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}
