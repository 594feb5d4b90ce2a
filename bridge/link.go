package bridge

import "context"

// Link is one directional half of a bridge transport: something that can
// send envelopes to, and receive envelopes from, the other party. The
// concrete transport (in-process channels, a subprocess's stdio, a socket)
// is a host-specific concern outside this runtime's scope (spec.md §1);
// Link is the seam callers implement against.
type Link interface {
	Send(ctx context.Context, e Envelope) error
	Recv(ctx context.Context) (Envelope, bool)
	Close()
}

// chanLink is an in-process Link backed by buffered channels, the default
// transport for compute/orchestration workers that run as goroutines
// rather than subprocesses (spec.md §5: "single-threaded cooperative per
// worker" — a goroutine satisfies this as well as an OS process does).
type chanLink struct {
	out    chan Envelope
	in     chan Envelope
	closed chan struct{}
}

// NewLinkPair returns two ends of an in-process bridge: parent.Send
// delivers to worker.Recv and vice versa.
func NewLinkPair(buffer int) (parent, worker Link) {
	ab := make(chan Envelope, buffer)
	ba := make(chan Envelope, buffer)
	closed := make(chan struct{})
	return &chanLink{out: ab, in: ba, closed: closed},
		&chanLink{out: ba, in: ab, closed: closed}
}

func (c *chanLink) Send(ctx context.Context, e Envelope) error {
	select {
	case c.out <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return context.Canceled
	}
}

func (c *chanLink) Recv(ctx context.Context) (Envelope, bool) {
	select {
	case e, ok := <-c.in:
		return e, ok
	case <-ctx.Done():
		return Envelope{}, false
	case <-c.closed:
		return Envelope{}, false
	}
}

// Close signals both ends of the pair that the link is shutting down.
// Safe to call from either side; idempotent.
func (c *chanLink) Close() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
}
