// Package gambiterr defines the error taxonomy shared across the runtime.
//
// Every error that crosses the worker bridge (§4.3) or surfaces to a caller
// is a *Error carrying a Kind drawn from the closed set documented in
// spec.md §7. Kinds determine recovery: some are fatal at load, some
// terminate a run, some are warnings promoted to errors at schema version
// 1.0+.
package gambiterr

import "fmt"

// Kind enumerates the recognized error categories. See spec.md §7 for the
// recovery behavior associated with each kind.
type Kind string

const (
	FrontMatterParseError Kind = "FrontMatterParseError"
	EmbedCycle            Kind = "EmbedCycle"
	ToolNameReserved      Kind = "ToolNameReserved"
	ToolNameInvalid       Kind = "ToolNameInvalid"
	ToolNameCollision     Kind = "ToolNameCollision"
	SchemaMismatch        Kind = "SchemaMismatch"
	PermissionDenied      Kind = "PermissionDenied"
	DepthExceeded         Kind = "DepthExceeded"
	PassesExceeded        Kind = "PassesExceeded"
	Timeout               Kind = "Timeout"
	WorkerTerminated      Kind = "WorkerTerminated"
	ModelError            Kind = "ModelError"
	UnsupportedFeature    Kind = "UnsupportedFeature"
)

// Error is the concrete error type produced throughout the runtime. It
// carries enough structure to cross the worker bridge as a wire payload
// (§4.3, §7: "{source, name, message, code}") and to be reconstructed on
// the other side without losing the Kind.
type Error struct {
	Kind    Kind
	Message string
	Code    string
	Source  string
	cause   error
}

// New constructs an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewWithCause wraps cause in an Error of the given kind, preserving it for
// Unwrap.
func NewWithCause(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Errorf builds an Error of the given kind using fmt formatting.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// FromError converts an arbitrary error into an Error chain. If err is
// already an *Error it is returned as-is; otherwise it is wrapped with
// ModelError, the catch-all kind for unclassified failures crossing a
// boundary.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Kind: ModelError, Message: err.Error(), cause: err}
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target shares this error's Kind, so callers can write
// errors.Is(err, gambiterr.New(gambiterr.Timeout, "")) style checks against
// a zero-value sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WirePayload is the {source, name, message, code} shape every bridge
// error is serialized into per spec.md §4.3/§7.
type WirePayload struct {
	Source  string `json:"source"`
	Name    string `json:"name"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ToWire converts the error into its bridge wire payload.
func (e *Error) ToWire(source string) WirePayload {
	return WirePayload{Source: source, Name: string(e.Kind), Message: e.Message, Code: e.Code}
}

// FromWire reconstructs a generic Error from a bridge payload. Code is
// preserved for programmatic handling as spec.md §7 requires; the parent
// does not necessarily know the original Kind, so it falls back to
// ModelError when Name does not match a recognized kind.
func FromWire(p WirePayload) *Error {
	kind := Kind(p.Name)
	switch kind {
	case FrontMatterParseError, EmbedCycle, ToolNameReserved, ToolNameInvalid,
		ToolNameCollision, SchemaMismatch, PermissionDenied, DepthExceeded,
		PassesExceeded, Timeout, WorkerTerminated, ModelError, UnsupportedFeature:
	default:
		kind = ModelError
	}
	return &Error{Kind: kind, Message: p.Message, Code: p.Code, Source: p.Source}
}
