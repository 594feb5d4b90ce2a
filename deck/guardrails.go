package deck

import "time"

// Guardrails bounds a deck's execution (spec.md §3). Nested depth is
// strictly increasing; MaxPasses bounds model turns per deck; TimeoutMs is
// converted to an absolute monotonic deadline and propagated unchanged to
// children.
type Guardrails struct {
	MaxDepth  int
	MaxPasses int
	TimeoutMs int64
}

// DefaultGuardrails mirrors spec.md §3's defaults.
func DefaultGuardrails() Guardrails {
	return Guardrails{MaxDepth: 3, MaxPasses: 10, TimeoutMs: 120000}
}

// Deadline converts TimeoutMs into an absolute instant anchored at start.
func (g Guardrails) Deadline(start time.Time) time.Time {
	return start.Add(time.Duration(g.TimeoutMs) * time.Millisecond)
}

// DefaultStatusDelay is the onBusy debounce named in spec.md §4.5.
const DefaultStatusDelay = 800 * time.Millisecond

// Handlers names the onBusy/onIdle/onError side-effect deck references
// (spec.md §4.5), plus their re-fire cadence.
type Handlers struct {
	OnBusy  *HandlerSpec
	OnIdle  *Ref
	OnError *Ref
}

// HandlerSpec is a handler deck reference plus its repeat cadence
// (spec.md §4.1 legacy alias: handlers.onInterval -> handlers.onBusy;
// handlers.*.intervalMs -> handlers.*.repeatMs).
type HandlerSpec struct {
	Deck     Ref
	RepeatMs int64
}
